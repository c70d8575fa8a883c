package banner

import (
	"fmt"

	"lucerna/pkg/config"
)

const banner = `
██╗     ██╗   ██╗ ██████╗███████╗██████╗ ███╗   ██╗ █████╗
██║     ██║   ██║██╔════╝██╔════╝██╔══██╗████╗  ██║██╔══██╗
██║     ██║   ██║██║     █████╗  ██████╔╝██╔██╗ ██║███████║
██║     ██║   ██║██║     ██╔══╝  ██╔══██╗██║╚██╗██║██╔══██║
███████╗╚██████╔╝╚██████╗███████╗██║  ██║██║ ╚████║██║  ██║
╚══════╝ ╚═════╝  ╚═════╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝
`

// Print prints the startup banner with the effective runtime settings and a
// short endpoint reference.
func Print(cfg *config.Config, addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages       - Log a message (JSON: user_id, model, role, content)")
	fmt.Println("GET  /v1/messages       - Query messages (start_date, end_date, user_id, aggregate_id)")
	fmt.Println("GET  /v1/messages/{id}  - Fetch one message")
	fmt.Println("GET  /v1/messages/stats - Bucketed message/token counts")
	fmt.Println("GET  /viewer/           - Dashboard")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"user_id\":\"u1\",\"model\":\"gpt-4\",\"role\":\"user\",\"content\":\"hello\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/messages?user_id=u1&start_date=2026-01-01'\n", addr)
	fmt.Println("\n== Production? ================================================")

	if cfg != nil && len(cfg.Security.APIKeys) > 0 {
		fmt.Printf("- API keys: OK (%d)\n", len(cfg.Security.APIKeys))
	} else if cfg != nil && cfg.Security.AllowUnauth {
		fmt.Println("- API keys: none (unauthenticated mode)")
	} else {
		fmt.Println("- API keys: MISSING (set security.api_keys or LUCERNA_API_KEYS)")
	}

	if cfg != nil && cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if cfg != nil && cfg.Retention.Enabled {
		info := ""
		if cfg.Retention.Cron != "" {
			info = "cron=" + cfg.Retention.Cron
		}
		if cfg.Retention.Period != "" {
			if info != "" {
				info += " "
			}
			info += "period=" + cfg.Retention.Period
		}
		if info != "" {
			fmt.Printf("- Retention: enabled (%s)\n", info)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: ======================================================")
}
