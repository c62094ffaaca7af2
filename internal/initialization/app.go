package initialization

import (
	"context"

	"github.com/taskline/taskline/internal/agent"
	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/controllers"
	"github.com/taskline/taskline/internal/domain"
	"github.com/taskline/taskline/internal/managers"
	"github.com/taskline/taskline/internal/server"
	calendarintegration "github.com/taskline/taskline/pkg/integrations/google/calendar"
	gmailintegration "github.com/taskline/taskline/pkg/integrations/google/gmail"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// App wires every component from configuration. The database handle is
// created here and passed down explicitly; nothing reaches for it through
// package state.
type App struct {
	HTTPAddress string
	HTTPServer  *fiber.App

	mongoClient *mongo.Client
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "connect", Err: err}
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		return nil, &domain.StoreUnavailableError{Op: "ping", Err: err}
	}

	db := mongoClient.Database(cfg.MongoDatabase)

	// Fails here, before serving anything, when the secret is missing.
	cipher, err := managers.NewTokenCipher(cfg.EncryptionSecret)
	if err != nil {
		return nil, err
	}

	credentialManager := managers.NewTokenLifecycleManager(managers.TokenLifecycleManagerDependencies{
		Store:      managers.NewMongoCredentialStore(db),
		Cipher:     cipher,
		Refresher:  managers.NewOAuthTokenRefresher(),
		Authorizer: managers.NewLoopbackAuthorizer(managers.LoopbackAuthorizerConfig{
			ClientID:      cfg.GoogleClientID,
			ClientSecret:  cfg.GoogleClientSecret,
			AuthEndpoint:  cfg.GoogleAuthEndpoint,
			TokenEndpoint: cfg.TokenEndpoint,
			ListenAddress: cfg.AuthCallbackAddress,
		}),
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	})

	clientFactory := managers.NewServiceClientFactory(managers.ServiceClientFactoryDependencies{
		CredentialManager: credentialManager,
	})

	conversations := managers.NewMongoConversationStore(db)

	chatAgent := agent.New(agent.Dependencies{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AgentModel,
		Mail: gmailintegration.NewGmailIntegration(gmailintegration.GmailIntegrationDependencies{
			ClientFactory: clientFactory,
		}),
		Calendar: calendarintegration.NewCalendarIntegration(calendarintegration.CalendarIntegrationDependencies{
			ClientFactory: clientFactory,
		}),
		Conversations: conversations,
	})

	agentController := controllers.NewAgentController(controllers.AgentControllerDependencies{
		Agent:         chatAgent,
		Conversations: conversations,
	})

	httpServer := server.NewHTTPServer(server.HTTPServerDependencies{
		AllowedOrigins:  cfg.AllowedOrigins,
		AgentController: agentController,
	})

	return &App{
		HTTPAddress: cfg.HTTPAddress,
		HTTPServer:  httpServer,
		mongoClient: mongoClient,
	}, nil
}

func (a *App) Shutdown(ctx context.Context) {
	if err := a.HTTPServer.ShutdownWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := a.mongoClient.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("MongoDB disconnect failed")
	}
}
