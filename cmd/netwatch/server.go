package main

import (
	"log/slog"
	"net/http"

	"github.com/ifpj/netwatch/internal/api"
	"github.com/ifpj/netwatch/internal/eventbus"
)

func newHTTPServer(statuses api.StatusSource, cfgStore api.ConfigStore, bus *eventbus.Bus, logger *slog.Logger) *http.Server {
	handler := api.NewServer(statuses, cfgStore, bus, logger)
	return &http.Server{Handler: handler}
}
