package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	probeHealthy   = "healthy"
	probeUnhealthy = "unhealthy"
	probeDisabled  = "disabled"
	probeTimeout   = 5 * time.Second
)

// LivenessCheck reports that the process is serving requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// ReadinessCheck pings the database and, when configured, Redis. A missing
// Redis client reads as "disabled" and does not fail the probe because the
// cache falls back to direct reads.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	checks := fiber.Map{
		"database": s.databaseProbe(ctx),
		"redis":    s.redisProbe(ctx),
	}

	code, overall := fiber.StatusOK, probeHealthy
	for _, v := range checks {
		if v == probeUnhealthy {
			code, overall = fiber.StatusServiceUnavailable, probeUnhealthy
		}
	}
	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

func (s *Server) databaseProbe(ctx context.Context) string {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return probeUnhealthy
	}
	return probeHealthy
}

func (s *Server) redisProbe(ctx context.Context) string {
	if s.redis == nil {
		return probeDisabled
	}
	if s.redis.Ping(ctx).Err() != nil {
		return probeUnhealthy
	}
	return probeHealthy
}
