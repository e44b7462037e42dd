package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	stakeerr "stakevault/core/errors"
	"stakevault/crypto"
	"stakevault/native/staking"
)

type vaultResponse struct {
	Address      string `json:"address"`
	Authority    string `json:"authority"`
	TotalStaked  string `json:"totalStaked"`
	TotalRewards string `json:"totalRewards"`
}

type accountResponse struct {
	Address       string `json:"address"`
	Owner         string `json:"owner"`
	Amount        string `json:"amount"`
	PendingReward string `json:"pendingReward"`
	PreviewReward string `json:"previewReward"`
	RewardBalance string `json:"rewardBalance"`
	LastUpdate    uint64 `json:"lastUpdate"`
}

// newRouter exposes read-only ledger state and process health. Mutations are
// not reachable over HTTP. Every request is traced.
func newRouter(engine *staking.Engine, metrics http.Handler, opts ...otelhttp.Option) http.Handler {
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics)
	r.Get("/v1/vault", func(w http.ResponseWriter, r *http.Request) {
		vault, err := engine.Vault()
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		authority := ""
		if vault.Authority != ([crypto.AddressLength]byte{}) {
			authority = crypto.MustNewAddress(crypto.StakePrefix, vault.Authority[:]).String()
		}
		writeJSON(w, http.StatusOK, vaultResponse{
			Address:      crypto.VaultAddress().String(),
			Authority:    authority,
			TotalStaked:  strconv.FormatUint(vault.TotalStaked, 10),
			TotalRewards: strconv.FormatUint(vault.TotalRewards, 10),
		})
	})
	r.Get("/v1/accounts/{owner}", func(w http.ResponseWriter, r *http.Request) {
		owner, err := crypto.DecodeAddress(strings.TrimSpace(chi.URLParam(r, "owner")))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		acc, err := engine.Account(owner)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		preview, err := engine.PreviewReward(owner)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		paid, err := engine.RewardBalance(owner)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{
			Address:       crypto.StakeAddress(owner).String(),
			Owner:         owner.String(),
			Amount:        strconv.FormatUint(acc.Amount, 10),
			PendingReward: strconv.FormatUint(acc.PendingReward, 10),
			PreviewReward: strconv.FormatUint(preview, 10),
			RewardBalance: strconv.FormatUint(paid, 10),
			LastUpdate:    acc.LastUpdate,
		})
	})
	return otelhttp.NewHandler(r, "stakingd", opts...)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stakeerr.ErrVaultNotInitialized), errors.Is(err, stakeerr.ErrAccountNotInitialized):
		writeJSONError(w, http.StatusNotFound, err)
	default:
		writeJSONError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
