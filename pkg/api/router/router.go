package router

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wsl-tools/wslportd/pkg/api"
)

type Backend struct {
	Forwarder Forwarder
}

type Forwarder interface {
	State() api.State
	TriggerSync()
}

func (b *Backend) onError(w http.ResponseWriter, r *http.Request, err error, ec int) {
	w.WriteHeader(ec)
	w.Header().Set("Content-Type", "application/json")
	// it is safe to return the err to the client, because the client is local
	e := api.ErrorJSON{
		Message: err.Error(),
	}
	_ = json.NewEncoder(w).Encode(e)
}

func (b *Backend) GetState(w http.ResponseWriter, r *http.Request) {
	state := b.Forwarder.State()
	m, err := json.Marshal(state)
	if err != nil {
		b.onError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(m)
}

func (b *Backend) PostSync(w http.ResponseWriter, r *http.Request) {
	b.Forwarder.TriggerSync()
	w.WriteHeader(http.StatusAccepted)
}

func AddRoutes(r *mux.Router, b *Backend) {
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Path("/state").Methods("GET").HandlerFunc(b.GetState)
	v1.Path("/sync").Methods("POST").HandlerFunc(b.PostSync)
}
