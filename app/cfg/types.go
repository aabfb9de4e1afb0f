package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath       string
	ChannelsFile string

	// Application configuration
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	RefreshInterval   int

	// Optional integrations; empty disables them
	RedisAddr      string
	CacheTTL       int
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
	AMQPQueue      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) RefreshDuration() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

func (c *Cfg) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}
