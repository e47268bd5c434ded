package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	config "gitlab.com/apiario/colmeia.server/src/production/COL.Config"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrFatalStartup marks failures the process cannot run without.
// Only main decides to exit on it.
var ErrFatalStartup = errors.New("fatal startup error")

func fatal(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFatalStartup, fmt.Sprintf(format, args...))
}

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	mongoClient *mongo.Client
	amqpConn    *amqp.Connection

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions, run in reverse order on Shutdown
	cleanupFuncs []func() error
}

// ApiContainer manages dependencies for the colmeia API service
type ApiContainer struct {
	*Container
}

// NewApiContainer loads configuration and builds the logger
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fatal("failed to load configuration: %v", err)
	}

	return &ApiContainer{Container: newContainer(cfg, logger.NewLogger(&cfg.Logging))}, nil
}

func newContainer(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		config: cfg,
		logger: log,
	}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetMongoClient connects to MongoDB once and verifies the primary is reachable
func (c *Container) GetMongoClient(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongoClient != nil {
		return c.mongoClient, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.config.Mongo.URL))
	if err != nil {
		return nil, fatal("unable to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fatal("unable to ping MongoDB: %v", err)
	}

	c.mongoClient = client
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Mongo.ConnectTimeout)
		defer cancel()
		return client.Disconnect(ctx)
	})

	c.logger.Logger.Info().
		Str("database", c.config.Mongo.Database).
		Str("collection", c.config.Mongo.Collection).
		Msg("MongoDB connected")

	return client, nil
}

// GetColmeiaCollection returns the configured colmeia collection
func (c *Container) GetColmeiaCollection(ctx context.Context) (*mongo.Collection, error) {
	client, err := c.GetMongoClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection), nil
}

// GetRabbitMQConnection dials the broker once
func (c *Container) GetRabbitMQConnection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.amqpConn != nil {
		return c.amqpConn, nil
	}

	conn, err := amqp.Dial(c.config.RabbitMQ.URL)
	if err != nil {
		return nil, fatal("unable to connect to RabbitMQ: %v", err)
	}

	c.amqpConn = conn
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		if conn.IsClosed() {
			return nil
		}
		return conn.Close()
	})

	c.logger.Info("RabbitMQ connected")
	return conn, nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown() error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	c.logger.Info("Shutting down container...")

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
			errs = append(errs, err)
		}
	}

	c.logger.Info("Container shutdown complete")
	return errors.Join(errs...)
}
