package service

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"bracket_bot/pkg/logger"
)

type SymbolLister interface {
	Symbols() ([]string, error)
}

// API: управление списком торгуемых символов.
type API struct {
	store     *Store
	available SymbolLister
	router    *mux.Router
}

func NewAPI(store *Store, available SymbolLister) *API {
	a := &API{store: store, available: available, router: mux.NewRouter()}
	a.routes()
	return a
}

func (a *API) routes() {
	a.router.HandleFunc("/get_active_symbols", a.handleActive).Methods(http.MethodGet)
	a.router.HandleFunc("/get_available_symbols", a.handleAvailable).Methods(http.MethodGet)
	a.router.HandleFunc("/add_symbol", a.handleAdd).Methods(http.MethodPost)
	a.router.HandleFunc("/stop_trading", a.handleStop).Methods(http.MethodPost)
}

// Handler: роутер с CORS для веб-панели.
func (a *API) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(a.router)
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

func (a *API) handleActive(w http.ResponseWriter, r *http.Request) {
	active, err := a.store.Active()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if active == nil {
		active = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"stocks": active})
}

func (a *API) handleAvailable(w http.ResponseWriter, r *http.Request) {
	syms, err := a.available.Symbols()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if syms == nil {
		syms = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"symbols": syms})
}

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	sym, ok := decodeSymbol(w, r)
	if !ok {
		return
	}
	res, err := a.store.Enable(sym)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("[CONTROL] %s включён (%d)", sym, res)
	switch res {
	case Added:
		respondMessage(w, http.StatusOK, sym+" added and started trading.")
	case Started:
		respondMessage(w, http.StatusOK, sym+" started trading.")
	default:
		respondMessage(w, http.StatusBadRequest, sym+" is already active.")
	}
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	sym, ok := decodeSymbol(w, r)
	if !ok {
		return
	}
	found, err := a.store.Disable(sym)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondMessage(w, http.StatusNotFound, sym+" not found.")
		return
	}
	logger.Info("[CONTROL] %s выключен", sym)
	respondMessage(w, http.StatusOK, sym+" stopped trading.")
}

func decodeSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req symbolRequest
	if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return "", false
	}
	sym := normalize(req.Symbol)
	if sym == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return sym, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigStd.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"message": msg})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
