package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/infrastructure/httpapi"
	"salon-chat/infrastructure/stomp"
	"salon-chat/internal"
	"salon-chat/runtime"
	"salon-chat/services"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const photoCommand = "/photo "

// Config defines the client-side environment variables.
type Config struct {
	UserID     string `env:"CHAT_USER_ID,required=true"`
	RoomID     int    `env:"CHAT_ROOM_ID,required=true"`
	SenderRole string `env:"CHAT_SENDER_ROLE,default=CUSTOMER"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run opens one chat session, prints what arrives and sends every stdin line to the room.
// A line "/photo <path>" sends the file as a photo message.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	var sessionConfig internal.SessionConfig
	var apiConfig internal.APIConfig
	if err := internal.Load(&config, &sessionConfig, &apiConfig); err != nil {
		return exitConfig, err
	}
	runtimeConfig, err := sessionConfig.Runtime()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	userID := domain.UserID(config.UserID)
	roomID := domain.RoomID(config.RoomID)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Listeners are registered before the session opens so nothing is missed.
	listeners := runtime.NewListeners(log)
	listeners.Add(event.MessageClass, event.ListenerFunc(func(evt event.Event) error {
		msg := evt.Message
		line := fmt.Sprintf("[%s] %s(%s): %s", time.Now().Format(time.TimeOnly), msg.SenderID, msg.SenderRole, msg.Body)
		for _, photo := range msg.Photos {
			line += "\n    " + photo.URL
		}
		fmt.Println(line)
		return nil
	}))
	listeners.Add(event.ErrorClass, event.ListenerFunc(func(evt event.Event) error {
		fmt.Fprintf(os.Stderr, "! %s: %s\n", evt.Error.Type, evt.Error.Message)
		if evt.Error.Type == event.ChatRoomDeletedType {
			stop()
		}
		return nil
	}))

	// 4. Open the session.
	manager := runtime.NewManager(log, stomp.NewTransport(log, nil), runtime.NewRouter(log, listeners), runtimeConfig)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.CloseAll(closeCtx)
	}()
	session, err := manager.Open(ctx, userID)
	if err != nil {
		return exitRuntime, err
	}

	rooms := httpapi.NewRoomClient(apiConfig.BaseURL, nil, apiConfig.RoomCheckTimeout, apiConfig.Headers())
	uploader := httpapi.NewUploadClient(log, apiConfig.BaseURL, nil, listeners, apiConfig.Headers())
	chat := services.NewChatService(log, rooms, uploader, listeners)

	log.Info(fmt.Sprintf(">>> Connected as %s to room %d (Ctrl+C to quit)", userID, roomID))

	// 5. Read stdin until the context is canceled or input ends.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			request := domain.SendRequest{RoomID: roomID, SenderRole: domain.SenderRole(config.SenderRole)}
			if strings.HasPrefix(line, photoCommand) {
				if err := sendPhoto(ctx, chat, session, request, strings.TrimSpace(strings.TrimPrefix(line, photoCommand))); err != nil {
					log.Warn("Photo not sent", "error", err)
				}
				continue
			}
			request.Body = line
			// failures are already reported by the error listener
			_, _ = chat.Send(ctx, session, request)
		}
	}
}

func sendPhoto(ctx context.Context, chat services.IChatService, session *runtime.Session, request domain.SendRequest, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	_, err = chat.SendWithFiles(ctx, session, request, []domain.File{{Name: info.Name(), Size: info.Size(), Body: file}})
	return err
}
