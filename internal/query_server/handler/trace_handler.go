package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/opentrail/opentrail/pkg/assembler"
)

// TraceTreeHandler creates a handler returning the assembled span tree for a
// trace id.
func TraceTreeHandler(
	ctx context.Context,
	traceAssembler *assembler.Assembler,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := mux.Vars(r)["traceId"]
		if traceID == "" {
			HttpError(w, "Missing trace id", http.StatusBadRequest, logger)
			return
		}

		tree, err := traceAssembler.Tree(traceID)
		if err != nil {
			if errors.Is(err, assembler.ErrTraceNotFound) || errors.Is(err, assembler.ErrNoRootSpan) {
				HttpError(w, "Trace not found", http.StatusNotFound, logger)
				return
			}
			logger.Error("Error encountered when assembling trace tree", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mapTraceNodeToDTO(tree)); err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
	}
}
