package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ayusman/lisa/internal/cache"
	"github.com/ayusman/lisa/internal/frame"
	"github.com/ayusman/lisa/internal/logging"
	"github.com/ayusman/lisa/internal/recognizer"
	"github.com/ayusman/lisa/internal/store"
)

// Client facing messages.
const (
	MessageNoHand      = "Nenhuma mão detectada na imagem"
	MessageErrorPrefix = "Erro ao processar imagem: "
)

var errMissingImage = errors.New("missing 'image' field")

// ProcessRequest is the body of POST /processar_imagem and of each /ws message.
type ProcessRequest struct {
	Image string `json:"image"`
}

// ProcessResponse is returned for every processed frame, success or not.
type ProcessResponse struct {
	Success    bool    `json:"sucesso"`
	Label      string  `json:"classe,omitempty"`
	Confidence float64 `json:"confianca,omitempty"`
	Image      string  `json:"imagem_processada,omitempty"`
	Message    string  `json:"mensagem,omitempty"`
}

func successResponse(label string, confidence float64, image string) ProcessResponse {
	return ProcessResponse{Success: true, Label: label, Confidence: confidence, Image: image}
}

func noHandResponse() ProcessResponse {
	return ProcessResponse{Message: MessageNoHand}
}

func errorResponse(err error) ProcessResponse {
	return ProcessResponse{Message: MessageErrorPrefix + err.Error()}
}

// handleProcessImage always answers 200; failures are reported in the body.
func (s *Server) handleProcessImage(c *gin.Context) {
	requestID := getRequestID(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		c.JSON(http.StatusOK, s.reject(requestID, store.SourceHTTP, err))
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusOK, s.reject(requestID, store.SourceHTTP, errMissingImage))
		return
	}

	c.JSON(http.StatusOK, s.process(c.Request.Context(), requestID, req.Image, store.SourceHTTP))
}

// reject answers a request whose body could not be parsed.
func (s *Server) reject(requestID string, source store.Source, err error) ProcessResponse {
	err = fmt.Errorf("%w: %v", recognizer.ErrInvalidInput, err)
	logging.WithOperation(s.logger, "process_image", requestID).Info("rejected request", zap.Error(err))

	resp := errorResponse(err)
	s.record(requestID, source, resp, 0)
	return resp
}

// process runs one data URI through the recognizer. Panics are recovered and
// reported like any other error.
func (s *Server) process(ctx context.Context, requestID, image string, source store.Source) (resp ProcessResponse) {
	start := time.Now()
	opLogger := logging.WithOperation(s.logger, "process_image", requestID)

	defer func() {
		if recovered := recover(); recovered != nil {
			opLogger.Error("panic while processing image",
				zap.Any("panic", recovered),
				zap.Stack("stack"))
			resp = errorResponse(fmt.Errorf("%v", recovered))
		}
		s.record(requestID, source, resp, time.Since(start))
	}()

	if s.config.Cache != nil {
		if entry, ok := s.config.Cache.Lookup(ctx, requestID, image); ok {
			opLogger.Debug("cache hit", zap.String("label", entry.Label))
			return successResponse(entry.Label, entry.Confidence, entry.Image)
		}
	}

	outcome, err := s.config.Recognizer.RecognizeDataURI(image)
	if err != nil {
		if errors.Is(err, recognizer.ErrInvalidInput) {
			opLogger.Info("invalid image", zap.Error(err))
		} else {
			opLogger.Error("recognition failed", zap.Error(err))
		}
		return errorResponse(err)
	}

	if outcome.Status == recognizer.StatusNoHand {
		return noHandResponse()
	}

	pred := outcome.Prediction
	resp = successResponse(pred.Label, pred.Confidence, frame.EncodeDataURI(outcome.AnnotatedJPEG))

	if s.config.Cache != nil {
		entry := cache.Entry{Label: resp.Label, Confidence: resp.Confidence, Image: resp.Image}
		if err := s.config.Cache.Store(ctx, requestID, image, entry); err != nil {
			opLogger.Warn("failed to cache result", zap.Error(err))
		}
	}

	opLogger.Info("sign recognized",
		zap.String("label", pred.Label),
		zap.Float64("confidence", pred.Confidence))
	return resp
}

// record appends the outcome to the prediction log when a store is configured.
func (s *Server) record(requestID string, source store.Source, resp ProcessResponse, latency time.Duration) {
	if s.config.Store == nil {
		return
	}

	p := &store.Prediction{
		RequestID:  requestID,
		Source:     source,
		Label:      resp.Label,
		Confidence: resp.Confidence,
		LatencyMs:  latency.Milliseconds(),
	}
	switch {
	case resp.Success:
		p.Status = store.StatusRecognized
	case resp.Message == MessageNoHand:
		p.Status = store.StatusNoHand
	default:
		p.Status = store.StatusError
		p.Message = resp.Message
	}

	if err := s.config.Store.Predictions().Create(p); err != nil {
		logging.WithOperation(s.logger, "record_prediction", requestID).Warn("failed to record prediction", zap.Error(err))
	}
}
