package main

import (
	"log"
	"net/http"

	"github.com/rs/cors"

	"todo-agent-backend/internal/agent"
	"todo-agent-backend/internal/auth"
	"todo-agent-backend/internal/chat"
	"todo-agent-backend/internal/config"
	"todo-agent-backend/internal/db"
	"todo-agent-backend/internal/tasks"
)

func main() {
	cfg := config.Load()

	var (
		userStore auth.Store
		taskStore tasks.Store
		chatStore chat.Store
	)

	if cfg.DBHost != "" {
		database, err := db.Connect(cfg.ConnString())
		if err != nil {
			log.Fatal("❌ Failed to connect DB:", err)
		}
		defer database.Close()

		log.Println("✅ Connected to PostgreSQL!")

		if err := db.Migrate(database); err != nil {
			log.Fatal("❌ Migration failed:", err)
		}

		userStore = auth.NewPostgresStore(database)
		taskStore = tasks.NewPostgresStore(database)
		chatStore = chat.NewPostgresStore(database)
	} else {
		log.Println("[WARN] DB_HOST not set, running with in-memory stores")
		userStore = auth.NewMemoryStore()
		taskStore = tasks.NewMemoryStore()
		chatStore = chat.NewMemoryStore()
	}

	secret := []byte(cfg.JWTSecret)
	taskSvc := tasks.NewService(taskStore)
	provider := agent.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel)
	chatHandler := chat.NewHandler(chatStore, taskSvc, provider)

	mw := auth.New(secret)

	mux := http.NewServeMux()

	// Health endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// ----- AUTH API -----
	mux.HandleFunc("POST /auth/register", auth.RegisterHandler(userStore, secret))
	mux.HandleFunc("POST /auth/login", auth.LoginHandler(userStore, secret))
	mux.HandleFunc("POST /auth/logout", mw.Wrap(auth.LogoutHandler()))
	mux.HandleFunc("GET /auth/me", mw.Wrap(auth.MeHandler(userStore)))

	// ----- TASKS API -----
	mux.HandleFunc("GET /api/tasks", mw.Wrap(tasks.ListTasksHandler(taskSvc)))
	mux.HandleFunc("POST /api/tasks", mw.Wrap(tasks.CreateTaskHandler(taskSvc)))
	mux.HandleFunc("GET /api/tasks/deleted", mw.Wrap(tasks.DeletedTasksHandler(taskSvc)))
	mux.HandleFunc("GET /api/tasks/{id}", mw.Wrap(tasks.GetTaskHandler(taskSvc)))
	mux.HandleFunc("PUT /api/tasks/{id}", mw.Wrap(tasks.UpdateTaskHandler(taskSvc)))
	mux.HandleFunc("DELETE /api/tasks/{id}", mw.Wrap(tasks.DeleteTaskHandler(taskSvc)))
	mux.HandleFunc("POST /api/tasks/{id}/restore", mw.Wrap(tasks.RestoreTaskHandler(taskSvc)))
	mux.HandleFunc("PATCH /api/tasks/{id}/complete", mw.Wrap(tasks.CompleteTaskHandler(taskSvc)))

	// ----- CHAT API -----
	mux.HandleFunc("POST /api/chat", mw.Wrap(chatHandler.ChatHandler()))
	mux.HandleFunc("GET /api/conversations", mw.Wrap(chatHandler.ListConversationsHandler()))
	mux.HandleFunc("GET /api/conversations/{id}/messages", mw.Wrap(chatHandler.ConversationMessagesHandler()))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	log.Printf("🚀 API server is running on :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
