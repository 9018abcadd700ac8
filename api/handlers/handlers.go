package handlers

import (
	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/services/search"
	"github.com/mailvault/mailvault/services/smtp"
)

// Handlers bundles the dependencies the REST endpoints close over
type Handlers struct {
	cfg       *config.Config
	log       logger.Logger
	repos     *repository.Repositories
	sender    *smtp.Sender
	search    *search.Service
	processor interfaces.ProcessorService
}

func InitHandlers(
	cfg *config.Config,
	log logger.Logger,
	repos *repository.Repositories,
	sender *smtp.Sender,
	searchService *search.Service,
	processor interfaces.ProcessorService,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		sender:    sender,
		search:    searchService,
		processor: processor,
	}
}
