package kvstore

import (
	"context"
	"fmt"
	"math"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore keeps records in etcd under a prefix, expiring them with leases so
// several broker replicas can share one view of the records.
type EtcdStore struct {
	cli    *clientv3.Client
	prefix string
}

// NewEtcdStore dials the given endpoints.
func NewEtcdStore(endpoints []string, prefix string, dialTimeout time.Duration) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &EtcdStore{cli: cli, prefix: prefix}, nil
}

func (s *EtcdStore) key(key string) string {
	return s.prefix + key
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.cli.Get(ctx, s.key(key))
	if err != nil {
		return nil, false, fmt.Errorf("etcd get %q: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (s *EtcdStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var opts []clientv3.OpOption
	if ttl > 0 {
		lease, err := s.cli.Grant(ctx, leaseSeconds(ttl))
		if err != nil {
			return fmt.Errorf("etcd grant lease for %q: %w", key, err)
		}
		opts = append(opts, clientv3.WithLease(lease.ID))
	}

	if _, err := s.cli.Put(ctx, s.key(key), string(value), opts...); err != nil {
		return fmt.Errorf("etcd put %q: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	if _, err := s.cli.Delete(ctx, s.key(key)); err != nil {
		return fmt.Errorf("etcd delete %q: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	return s.cli.Close()
}

// leaseSeconds rounds ttl up to whole seconds, minimum one.
func leaseSeconds(ttl time.Duration) int64 {
	secs := int64(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
