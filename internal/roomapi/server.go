package roomapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/internal/chat/rooms"
	"github.com/lk2023060901/chat-garden-go/internal/json"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	"github.com/lk2023060901/chat-garden-go/pkg/metrics"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// Server 通过 HTTP/JSON 暴露房间与历史服务。
//
// 路由：
//   POST /api/v1/rooms                    创建房间
//   GET  /api/v1/rooms                    列出房间
//   POST /api/v1/rooms/:name/join         加入房间并取最近历史
//   GET  /api/v1/rooms/:name/messages     分页拉取更早历史（before/limit）
type Server struct {
	app *fiber.App
	reg *rooms.Registry
}

// NewServer 创建房间服务。
func NewServer(reg *rooms.Registry) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "chat-room-service",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app: app,
		reg: reg,
	}

	api := app.Group("/api/v1")
	roomsGroup := api.Group("/rooms")
	roomsGroup.Post("/", s.createRoom)
	roomsGroup.Get("/", s.listRooms)
	roomsGroup.Post("/:name/join", s.joinRoom)
	roomsGroup.Get("/:name/messages", s.loadOlderMessages)

	return s
}

// App 返回内部的 fiber 应用，测试中可直接使用 app.Test。
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen 启动 HTTP 服务，阻塞直至关闭。
func (s *Server) Listen(addr string) error {
	log.Info("room service listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown 优雅关闭 HTTP 服务。
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) createRoom(c *fiber.Ctx) error {
	start := time.Now()

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, start, "create", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("malformed request body: %v", err))
	}
	if req.Name == "" || req.Owner == "" {
		return s.fail(c, start, "create", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("name and owner are required"))
	}

	created := s.reg.Create(req.Name, req.Owner)
	if created {
		metrics.RegisteredRooms.Set(float64(s.reg.Count()))
		log.Info("room created",
			zap.String("room", req.Name),
			zap.String("owner", req.Owner))
	}

	s.observe(start, "create", "ok")
	status := fiber.StatusCreated
	if !created {
		// 同名房间已存在：非错误，返回 created=false。
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(CreateRoomResponse{
		Status:  merr.StatusOf(nil),
		Created: created,
	})
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	start := time.Now()

	names := s.reg.List()
	s.observe(start, "list", "ok")
	return c.JSON(ListRoomsResponse{
		Status: merr.StatusOf(nil),
		Rooms:  names,
	})
}

func (s *Server) joinRoom(c *fiber.Ctx) error {
	start := time.Now()
	name := c.Params("name")

	var req JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, start, "join", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("malformed request body: %v", err))
	}
	if req.User == "" {
		return s.fail(c, start, "join", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("user is required"))
	}

	// 房间不存在时返回空历史而不是错误。
	history := s.reg.Join(name, req.User)

	s.observe(start, "join", "ok")
	return c.JSON(JoinRoomResponse{
		Status:   merr.StatusOf(nil),
		Messages: history,
	})
}

func (s *Server) loadOlderMessages(c *fiber.Ctx) error {
	start := time.Now()
	name := c.Params("name")

	beforeID, err := strconv.ParseInt(c.Query("before", "0"), 10, 64)
	if err != nil {
		return s.fail(c, start, "load_older", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("invalid before id %q", c.Query("before")))
	}

	limit := c.QueryInt("limit", DefaultPageSize)
	if limit <= 0 {
		return s.fail(c, start, "load_older", fiber.StatusBadRequest,
			merr.WrapErrParameterInvalidMsg("limit must be positive, got %d", limit))
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	messages := s.reg.LoadOlder(name, beforeID, limit)

	s.observe(start, "load_older", "ok")
	return c.JSON(MessagesResponse{
		Status:   merr.StatusOf(nil),
		Messages: messages,
	})
}

func (s *Server) fail(c *fiber.Ctx, start time.Time, op string, httpStatus int, err error) error {
	s.observe(start, op, "error")
	log.RatedWarn(1, "room request rejected",
		zap.String("op", op),
		zap.Error(err))
	return c.Status(httpStatus).JSON(fiber.Map{
		"status": merr.StatusOf(err),
	})
}

func (s *Server) observe(start time.Time, op, status string) {
	metrics.RoomRequestDuration.
		WithLabelValues(op, status).
		Observe(float64(time.Since(start).Milliseconds()))
}
