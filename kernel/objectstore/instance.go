package objectstore

import (
	"fmt"
	"net"
	"strconv"

	"github.com/youwol/datamanager/kernel/model"
)

const (
	AliasLocal   = "local"
	AliasCluster = "cluster"
)

// Instance is an S3-compatible server reachable over http(s).
type Instance struct {
	Host      string
	Port      int
	TLS       bool
	AccessKey string
	SecretKey string
}

// LocalInstance is the minio server running next to the job, without TLS.
func LocalInstance(cfg model.MinioConfig) Instance {
	return Instance{
		Host:      "localhost",
		Port:      cfg.LocalPort,
		AccessKey: cfg.LocalAccessKey,
		SecretKey: cfg.LocalSecretKey,
	}
}

func ClusterInstance(cfg model.S3Config) Instance {
	return Instance{
		Host:      cfg.Host,
		Port:      cfg.Port,
		TLS:       cfg.TLS,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	}
}

// Endpoint is host:port, as expected by S3 SDKs.
func (i Instance) Endpoint() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func (i Instance) BaseUrl() string {
	scheme := "http"
	if i.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, i.Endpoint())
}

func (i Instance) HealthUrl() string {
	return i.BaseUrl() + "/minio/health/live"
}

func (i Instance) Validate(prefix string) error {
	return model.RequireAll(
		prefix+" host", i.Host,
		prefix+" access key", i.AccessKey,
		prefix+" secret key", i.SecretKey,
	)
}
