package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	queueport "shorewatch/internal/infrastructure/queue/port"
	"shorewatch/internal/infrastructure/relay"
	identityadapter "shorewatch/internal/pkg/identity/adapter"
	identityusecase "shorewatch/internal/pkg/identity/application/usecase"
	identitycontroller "shorewatch/internal/pkg/identity/presentation/controller"
	"shorewatch/internal/pkg/messaging/application/usecase"
	"shorewatch/internal/pkg/messaging/persistence/repository/adapter"
	"shorewatch/internal/pkg/messaging/presentation/controller"
)

// Deps bundles the shared infrastructure the messaging surface needs.
type Deps struct {
	Pool        *pgxpool.Pool
	Relay       relay.Relay
	Queue       queueport.Client
	Cache       cacheport.Cache
	Log         *zap.Logger
	NotifyQueue string
	PageSize    int
}

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
// The group is expected to already carry the auth middleware.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	repo := adapter.NewPgMessagingRepository(d.Pool)
	directory := identityadapter.NewPgDirectory(d.Pool)

	openUC := usecase.NewStartConversationUseCase(repo, directory)
	sendUC := usecase.NewSendMessageUseCase(repo, openUC, d.Relay, d.Queue, d.Cache, d.Log, d.NotifyQueue)
	listMsgsUC := usecase.NewListMessagesUseCase(repo, d.PageSize)
	listConvsUC := usecase.NewListConversationsUseCase(repo, d.Cache, d.Log)
	markReadUC := usecase.NewMarkReadUseCase(repo, d.Cache, d.Log)
	unreadUC := usecase.NewCountUnreadUseCase(repo, d.Cache, d.Log)
	searchUC := identityusecase.NewSearchUsersUseCase(directory)

	startCtl := controller.NewStartConversationController(openUC)
	sendCtl := controller.NewSendMessageController(sendUC)
	getMsgsCtl := controller.NewGetMessagesController(listMsgsUC)
	listConvsCtl := controller.NewListConversationsController(listConvsUC)
	markReadCtl := controller.NewMarkReadController(markReadUC)
	socketCtl := controller.NewMessagingSocketController(d.Relay, repo, sendUC, unreadUC, d.Log)
	searchCtl := identitycontroller.NewSearchUsersController(searchUC)

	// POST /api/v1/conversations -> open (or find) the conversation with a peer
	g.POST("/conversations", startCtl.Handle())

	// GET /api/v1/conversations -> the caller's inbox
	g.GET("/conversations", listConvsCtl.Handle())

	// POST /api/v1/conversations/:conversationId/read -> stamp read receipts
	g.POST("/conversations/:conversationId/read", markReadCtl.Handle())

	// POST /api/v1/messages -> send a message to a recipient
	g.POST("/messages", sendCtl.Handle())

	// GET /api/v1/messages?conversation_id=... -> one page of history
	g.GET("/messages", getMsgsCtl.Handle())

	// GET /api/v1/users/search?q=... -> find people to talk to
	g.GET("/users/search", searchCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for realtime delivery
	g.GET("/ws", socketCtl.Handle())
}
