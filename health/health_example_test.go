// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
)

func ExampleAll() {
	var started Binary
	circuitClosed := MonitorFunc(func(ctx context.Context) (bool, error) {
		return true, nil
	})

	readiness := All(&started, circuitClosed)

	ok, _ := readiness.Healthy(context.Background())
	fmt.Println(ok)

	started.MarkHealthy()

	ok, _ = readiness.Healthy(context.Background())
	fmt.Println(ok)

	// Output:
	// false
	// true
}

func ExampleHandler() {
	var b Binary
	h := Handler(&b, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	fmt.Println(w.Code)

	b.MarkHealthy()

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	fmt.Println(w.Code)

	// Output:
	// 503
	// 200
}
