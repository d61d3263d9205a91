package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// adminCall sends one request to a running server's admin API and pretty-prints
// the JSON reply to w. Non-2xx replies are returned as errors after printing.
func adminCall(w io.Writer, cl *http.Client, method, baseURL, path string) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if json.Indent(&out, bytes.TrimSpace(raw), "", "  ") == nil {
		raw = out.Bytes()
	}
	fmt.Fprintln(w, strings.TrimSpace(string(raw)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func httpCmd(name, method, path string, timeout time.Duration, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: timeout}
	if err := adminCall(os.Stdout, cl, method, *baseURL, path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	httpCmd("state", http.MethodGet, "/admin/v1/state", 5*time.Second, args)
}

func saveCmd(args []string) {
	httpCmd("save", http.MethodPost, "/admin/v1/save", 10*time.Second, args)
}

func observerCmd(args []string) {
	httpCmd("observer", http.MethodGet, "/admin/v1/observer/bootstrap", 5*time.Second, args)
}
