package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/api"
	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/cron"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services/events"
	"github.com/mailvault/mailvault/services/extractor"
	"github.com/mailvault/mailvault/services/processor"
	"github.com/mailvault/mailvault/services/search"
	"github.com/mailvault/mailvault/services/smtp"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	repositories *repository.Repositories
	sender       *smtp.Sender
	search       *search.Service
	scheduler    *processor.Scheduler
	publisher    interfaces.EventPublisher
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	extractorService := extractor.NewService(appLogger)
	sender := smtp.NewSender(cfg.SMTPConfig, appLogger)
	searchService := search.NewService(db)

	// the broker is optional; without a URL, ingestion simply skips
	// event publishing
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, appLogger, nil)
		if err != nil {
			return nil, err
		}
		publisher = rabbitPublisher
	}

	scheduler := processor.NewScheduler(cfg, appLogger, repos, extractorService, publisher)
	cronManager := cron.NewCronManager(cfg, appLogger, repos)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		repositories: repos,
		sender:       sender,
		search:       searchService,
		scheduler:    scheduler,
		publisher:    publisher,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%s", cfg.AppConfig.APIHost, cfg.AppConfig.APIPort),
			Handler: router,
		},
	}, nil
}

func (s *Server) Initialize(ctx context.Context) error {
	api.RegisterRoutes(ctx, s.router, s.config, s.log, s.repositories, s.sender, s.search, s.scheduler)
	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("❌ Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	log.Println("Starting email processor...")
	go s.wrapGoroutine("email_processor", func() {
		if err := s.scheduler.Start(ctx); err != nil {
			log.Printf("❌ Email processor error: %v", err)
		}
	})
	log.Println("✅ Email processor started successfully")

	s.cronManager.Start()
	log.Println("✅ Cron manager started successfully")

	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	})
	log.Println("✅ HTTP server started successfully")
	log.Println("MailVault is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ HTTP server shutdown error: %v", err)
	} else {
		log.Println("✅ HTTP server shut down successfully")
	}

	log.Println("Stopping email processor...")
	stopDone := make(chan struct{})
	go s.wrapGoroutine("email_processor_shutdown", func() {
		defer close(stopDone)
		if err := s.scheduler.Stop(); err != nil {
			log.Printf("❌ Email processor shutdown error: %v", err)
		} else {
			log.Println("✅ Email processor stopped successfully")
		}
	})

	select {
	case <-stopDone:
		log.Println("Email processor stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Println("⚠️ Email processor stop timed out, forcing exit")
	}

	s.cronManager.Stop()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("❌ Event publisher shutdown error: %v", err)
		}
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	return nil
}
