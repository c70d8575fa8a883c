// lucerna-probe is a lean liveness sidecar. It exposes /healthz on its own
// port and reports whether the main lucerna server answers its health check,
// so orchestrators can probe without auth or the full router in the path.
package main

import (
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the probe")
	target := flag.String("target", "http://127.0.0.1:8080/healthz", "health URL of the lucerna server")
	interval := flag.Duration("interval", 5*time.Second, "probe interval")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	var healthy atomic.Bool
	client := &fasthttp.Client{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	probe := func() {
		code, _, err := client.GetTimeout(nil, *target, 2*time.Second)
		healthy.Store(err == nil && code == fasthttp.StatusOK)
	}
	probe()
	go func() {
		t := time.NewTicker(*interval)
		defer t.Stop()
		for range t.C {
			probe()
		}
	}()

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			if healthy.Load() {
				ctx.SetStatusCode(fasthttp.StatusOK)
				_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
			} else {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				_, _ = ctx.WriteString("{\"status\":\"unreachable\"}")
			}
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("lucerna-probe listening on %s (target %s)\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "lucerna-probe",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("probe server exit: %v\n", err)
	}
}
