package computing

import (
	"fmt"
	"time"

	"github.com/chaoschain/go-evidence-provider/internal/compute"
	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"
)

type CeleryService struct {
	cli *gocelery.CeleryClient
}

func NewRedisPool(url string, password string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     5,                 // maximum number of idle connections in the pool
		MaxActive:   0,                 // maximum number of connections allocated by the pool at a given time
		IdleTimeout: 240 * time.Second, // close connections after remaining idle for this duration
		Dial: func() (redis.Conn, error) {
			if password != "" {
				return redis.DialURL(url, redis.DialPassword(password))
			}
			return redis.DialURL(url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewCeleryService(redisPool *redis.Pool, workers int) (*CeleryService, error) {
	celeryClient, err := gocelery.NewCeleryClient(
		gocelery.NewRedisBroker(redisPool),
		gocelery.NewRedisBackend(redisPool),
		workers)
	if err != nil {
		return nil, fmt.Errorf("failed init celery service, error: %w", err)
	}
	return &CeleryService{cli: celeryClient}, nil
}

func (s *CeleryService) RegisterTask(taskName string, task interface{}) {
	s.cli.Register(taskName, task)
}

// Dispatcher lets the celery compute backend submit through this client.
func (s *CeleryService) Dispatcher() *compute.CeleryDispatcher {
	return &compute.CeleryDispatcher{Client: s.cli}
}

func (s *CeleryService) Start() {
	s.cli.StartWorker()
}

func (s *CeleryService) Stop() {
	s.cli.StopWorker()
}
