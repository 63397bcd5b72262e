package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"stompingground/internal/adapter/api"
	"stompingground/internal/adapter/api/handler"
	apimiddleware "stompingground/internal/adapter/api/middleware"
	"stompingground/internal/adapter/api/router"
	"stompingground/internal/adapter/repository"
	"stompingground/internal/domain/service"
	"stompingground/internal/domain/store"
	"stompingground/internal/infrastructure/firebase"
	fsstore "stompingground/internal/infrastructure/firestore"
	"stompingground/internal/infrastructure/memstore"
	"stompingground/internal/infrastructure/ratelimit"
	"stompingground/internal/infrastructure/storage"
	"stompingground/internal/infrastructure/websocket"
	syncengine "stompingground/internal/sync"
	"stompingground/internal/usecase"
	"stompingground/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var docStore store.DocumentStore
	var verifier apimiddleware.TokenVerifier
	var authClient usecase.AuthClient
	var uploader usecase.AvatarUploader

	if cfg.FirebaseProject == "" {
		if cfg.Environment != "development" {
			log.Fatalf("FIREBASE_PROJECT_ID is required outside development")
		}
		// No credentials: run everything against the in-memory store with
		// pass-through tokens. Data does not survive a restart.
		log.Printf("FIREBASE_PROJECT_ID not set, using in-memory store (development only)")
		docStore = memstore.New()
		verifier = apimiddleware.DevTokenVerifier{}
		authClient = devAuthClient{}
	} else {
		var opt option.ClientOption
		if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
			opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
		} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
			opt = option.WithCredentialsFile(serviceAccountPath)
		}

		var opts []option.ClientOption
		if opt != nil {
			opts = append(opts, opt)
		}

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		fbAuth, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		firebaseAuthClient := firebase.NewFirebaseAuthClient(fbAuth)
		docStore = fsstore.NewStore(firestoreClient)
		verifier = firebaseAuthClient
		authClient = firebaseAuthClient

		if cfg.StorageBucket != "" {
			storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"))
			if err != nil {
				log.Fatalf("Failed to initialize Cloud Storage: %v", err)
			}
			uploader = storageClient
		}
	}

	projector := service.NewRecentMessageProjector(docStore)
	userRepo := repository.NewStoreUserRepository(docStore)
	chatRepo := repository.NewStoreChatRepository(docStore, projector)

	engine := syncengine.NewEngine(docStore)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	seenTracker := usecase.NewSeenTracker(chatRepo)
	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, projector, seenTracker, wsManager, rateLimiter)
	userUseCase := usecase.NewUserUseCase(userRepo, authClient, uploader)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	userHandler := handler.NewUserHandler(userUseCase)
	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, engine)
	healthHandler := handler.NewHealthHandler()

	router.Setup(e, authMiddleware, userHandler, chatHandler, wsHandler, healthHandler)

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// devAuthClient backs registration when no identity provider is wired.
type devAuthClient struct{}

func (devAuthClient) CreateUser(_ context.Context, email, _, _ string) (string, error) {
	return "dev-" + email, nil
}

func (devAuthClient) GenerateToken(_ context.Context, uid string) (string, error) {
	return uid, nil
}
