package httpapi

import (
	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

type API struct {
	service   *quiz.Service
	log       *logger.Logger
	jwtSecret []byte
}

func NewAPI(service *quiz.Service, log *logger.Logger, jwtSecret []byte) *API {
	if log == nil {
		log = logger.NewNop()
	}
	return &API{
		service:   service,
		log:       log.With("component", "httpapi"),
		jwtSecret: jwtSecret,
	}
}
