package service

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

type listerStub []string

func (l listerStub) Symbols() ([]string, error) { return l, nil }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := NewStoreAt(filepath.Join(t.TempDir(), "config", "symbols.yaml"), []string{"eurusd", "GBPUSD"})
	if err := st.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return st
}

func TestStoreResetDisablesAll(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Enable("EURUSD"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := st.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	m, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m) != 2 || m["EURUSD"] || m["GBPUSD"] {
		t.Fatalf("after reset = %v", m)
	}
}

func TestStoreEnableDisable(t *testing.T) {
	st := newTestStore(t)

	cases := []struct {
		symbol string
		want   EnableResult
	}{
		{"eurusd", Started},
		{"EURUSD", AlreadyActive},
		{"usdjpy", Added},
	}
	for _, tc := range cases {
		got, err := st.Enable(tc.symbol)
		if err != nil || got != tc.want {
			t.Fatalf("enable %s = %v %v, want %v", tc.symbol, got, err, tc.want)
		}
	}

	active, _ := st.Active()
	if strings.Join(active, ",") != "EURUSD,USDJPY" {
		t.Fatalf("active = %v", active)
	}

	if found, err := st.Disable("eurusd"); !found || err != nil {
		t.Fatalf("disable = %v %v", found, err)
	}
	if found, _ := st.Disable("AUDUSD"); found {
		t.Fatal("unknown symbol must not be found")
	}
	active, _ = st.Active()
	if strings.Join(active, ",") != "USDJPY" {
		t.Fatalf("active = %v", active)
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = sonic.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestAPI(t *testing.T) {
	st := newTestStore(t)
	h := NewAPI(st, listerStub{"EURUSD", "USDJPY"}).Handler(nil)

	code, out := do(t, h, http.MethodPost, "/add_symbol", `{"symbol":"eurusd"}`)
	if code != http.StatusOK || out["message"] != "EURUSD started trading." {
		t.Fatalf("add: %d %v", code, out)
	}
	code, _ = do(t, h, http.MethodPost, "/add_symbol", `{"symbol":"EURUSD"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("repeat add: %d", code)
	}

	code, out = do(t, h, http.MethodGet, "/get_active_symbols", "")
	if code != http.StatusOK {
		t.Fatalf("active: %d", code)
	}
	if stocks, _ := out["stocks"].([]any); len(stocks) != 1 || stocks[0] != "EURUSD" {
		t.Fatalf("active = %v", out)
	}

	code, out = do(t, h, http.MethodGet, "/get_available_symbols", "")
	if syms, _ := out["symbols"].([]any); code != http.StatusOK || len(syms) != 2 {
		t.Fatalf("available: %d %v", code, out)
	}

	code, _ = do(t, h, http.MethodPost, "/stop_trading", `{"symbol":"EURUSD"}`)
	if code != http.StatusOK {
		t.Fatalf("stop: %d", code)
	}
	code, _ = do(t, h, http.MethodPost, "/stop_trading", `{"symbol":"NZDUSD"}`)
	if code != http.StatusNotFound {
		t.Fatalf("stop unknown: %d", code)
	}
	code, _ = do(t, h, http.MethodPost, "/add_symbol", `{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("empty symbol: %d", code)
	}
	code, _ = do(t, h, http.MethodGet, "/add_symbol", "")
	if code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: %d", code)
	}
}
