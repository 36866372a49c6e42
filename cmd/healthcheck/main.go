// Command healthcheck GETs the gateway's /health endpoint and exits with a
// small fixed code describing the outcome, for use as a container/orchestrator
// liveness probe. Port of original_source/app/metrics/healthcheck_client.py.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/liquorice-gateway/gateway/internal/healthcheck"
)

func main() {
	url := healthcheck.DefaultURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	client := &http.Client{Timeout: healthcheck.RequestTimeout}
	res := healthcheck.Run(context.Background(), client, url)

	fmt.Println(res.Message)
	os.Exit(res.ExitCode)
}
