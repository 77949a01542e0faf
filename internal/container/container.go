package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/halcyonlab/usergate/config"
	"github.com/halcyonlab/usergate/internal/hooks"
	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/internal/store"
	"github.com/halcyonlab/usergate/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	jwtManager  *helpers.JWTManager

	storeRegistry *store.Registry
	hookRegistry  *hooks.Registry
	sessions      session.Store

	rabbitPub *helpers.RabbitPublisher
	esClient  *elasticsearch.Client
)

func SetConfig(c *config.Config)    { cfg = c }
func GetConfig() *config.Config     { return cfg }
func SetLogger(l *logrus.Logger)    { logger = l }
func GetLogger() *logrus.Logger     { return logger }
func SetRedis(r *redis.Client)      { redisClient = r }
func GetRedis() *redis.Client       { return redisClient }
func SetJWT(m *helpers.JWTManager)  { jwtManager = m }
func GetJWT() *helpers.JWTManager   { return jwtManager }
func SetStores(r *store.Registry)   { storeRegistry = r }
func GetStores() *store.Registry    { return storeRegistry }
func SetHooks(h *hooks.Registry)    { hookRegistry = h }
func GetHooks() *hooks.Registry     { return hookRegistry }
func SetSessions(s session.Store)   { sessions = s }
func GetSessions() session.Store    { return sessions }

func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }
func SetES(c *elasticsearch.Client)           { esClient = c }
func GetES() *elasticsearch.Client            { return esClient }
