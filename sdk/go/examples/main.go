package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"config-client/sdk/go/configclient"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/client/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = io.WriteString(w, configclient.MessagePrefix+"demo value")
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := configclient.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("service status %s\n", health.Status)

	value, err := client.GetConfig(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("example.property = %q\n", value)
}
