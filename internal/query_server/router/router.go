package router

import (
	"context"
	"github.com/opentrail/opentrail/internal/query_server/handler"
	"github.com/opentrail/opentrail/pkg/assembler"
	"go.uber.org/zap"
	"net/http"
)
import "github.com/gorilla/mux"

func CreateRouter(
	ctx context.Context,
	traceAssembler *assembler.Assembler,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle(
		"/api/v1/traces/{traceId}", handler.TraceTreeHandler(
			ctx,
			traceAssembler,
			logger,
		),
	).Methods("GET")

	return r
}
