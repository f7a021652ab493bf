package lock

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// ZooKeeper implements the ephemeral-sequential lock recipe. Each contender
// creates a sequential child under <root>/<key> and waits on the deletion of
// its immediate predecessor, so waiters are served in arrival order and a
// crashed holder's node vanishes with its session.
type ZooKeeper struct {
	conn *zk.Conn
	root string
}

func NewZooKeeper(conn *zk.Conn, root string) *ZooKeeper {
	return &ZooKeeper{conn: conn, root: root}
}

const zkLockNodePrefix = "lock-"

func (z *ZooKeeper) Acquire(ctx context.Context, key string) (Lease, error) {
	lockPath := path.Join(z.root, key)
	if err := z.ensurePath(lockPath); err != nil {
		return nil, unavailableError(key, "ensure path", err)
	}

	node, err := z.conn.CreateProtectedEphemeralSequential(lockPath+"/"+zkLockNodePrefix, nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, unavailableError(key, "create sequential node", err)
	}
	mine := strings.TrimPrefix(node, lockPath+"/")
	lease := &zkLease{conn: z.conn, node: node}

	for {
		children, _, err := z.conn.Children(lockPath)
		if err != nil {
			_ = lease.Release(ctx)
			return nil, unavailableError(key, "list contenders", err)
		}
		sortBySequence(children)

		idx := slices.Index(children, mine)
		if idx < 0 {
			_ = lease.Release(ctx)
			return nil, fmt.Errorf("lock %s: own node %s disappeared", key, mine)
		}
		if idx == 0 {
			return lease, nil
		}

		exists, _, events, err := z.conn.ExistsW(lockPath + "/" + children[idx-1])
		if err != nil {
			_ = lease.Release(ctx)
			return nil, unavailableError(key, "watch predecessor", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-ctx.Done():
			_ = lease.Release(context.WithoutCancel(ctx))
			return nil, timeoutError(key, ctx.Err())
		}
	}
}

func (z *ZooKeeper) ensurePath(p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		current += "/" + part
		_, err := z.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create znode %s: %w", current, err)
		}
	}
	return nil
}

// sortBySequence orders lock nodes by their sequence suffix. Protected nodes
// carry a random prefix, so a plain string sort would not reflect arrival.
func sortBySequence(children []string) {
	slices.SortFunc(children, func(a, b string) int {
		return strings.Compare(sequenceOf(a), sequenceOf(b))
	})
}

func sequenceOf(node string) string {
	if i := strings.LastIndex(node, zkLockNodePrefix); i >= 0 {
		return node[i+len(zkLockNodePrefix):]
	}
	return node
}

type zkLease struct {
	once sync.Once
	conn *zk.Conn
	node string
}

func (l *zkLease) Release(context.Context) error {
	var err error
	l.once.Do(func() {
		if delErr := l.conn.Delete(l.node, -1); delErr != nil && !errors.Is(delErr, zk.ErrNoNode) {
			err = fmt.Errorf("release %s: %w", l.node, delErr)
		}
	})
	return err
}
