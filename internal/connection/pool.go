package connection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tokentruth/internal/config"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// ChainPool 按链组织的EVM连接池
// 同一条链可配置多个节点，按priority排序做故障转移。
type ChainPool struct {
	nodesByChain map[string][]*config.NodeConfig
	pools        map[string]*NodePool // 按节点名索引
	logger       *logrus.Logger
	mu           sync.RWMutex
	healthCheck  time.Duration
	done         chan struct{}
}

// NodePool 单个节点的连接池
type NodePool struct {
	nodeConfig *config.NodeConfig
	clients    chan *ethclient.Client
	maxSize    int
	current    int
	logger     *logrus.Logger
	mu         sync.Mutex
	isHealthy  bool
	lastCheck  time.Time
}

// NewChainPool 创建连接池
func NewChainPool(nodes []*config.NodeConfig, logger *logrus.Logger) *ChainPool {
	nodesByChain := make(map[string][]*config.NodeConfig)
	for _, node := range nodes {
		nodesByChain[node.Chain] = append(nodesByChain[node.Chain], node)
	}
	for chain := range nodesByChain {
		chainNodes := nodesByChain[chain]
		sort.SliceStable(chainNodes, func(i, j int) bool {
			return chainNodes[i].Priority < chainNodes[j].Priority
		})
	}

	return &ChainPool{
		nodesByChain: nodesByChain,
		pools:        make(map[string]*NodePool),
		logger:       logger,
		healthCheck:  30 * time.Second,
		done:         make(chan struct{}),
	}
}

// Initialize 初始化连接池
// URL为空的节点直接跳过，对应链的升级性检测会降级为未知。
func (cp *ChainPool) Initialize() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for chain, nodes := range cp.nodesByChain {
		for _, node := range nodes {
			if node.URL == "" {
				cp.logger.Warnf("链 %s 节点 %s 未配置URL，跳过", chain, node.Name)
				continue
			}

			pool, err := NewNodePool(node, 10, cp.logger) // 每个节点最多10个连接
			if err != nil {
				cp.logger.Warnf("初始化链 %s 节点 %s 连接池失败: %v", chain, node.Name, err)
				continue
			}

			cp.pools[node.Name] = pool
			cp.logger.Infof("链 %s 节点 %s 连接池已初始化", chain, node.Name)
		}
	}

	if len(cp.pools) == 0 {
		return fmt.Errorf("没有可用的节点连接池")
	}

	go cp.healthChecker()

	return nil
}

// NewNodePool 创建节点连接池
func NewNodePool(nodeConfig *config.NodeConfig, maxSize int, logger *logrus.Logger) (*NodePool, error) {
	pool := &NodePool{
		nodeConfig: nodeConfig,
		clients:    make(chan *ethclient.Client, maxSize),
		maxSize:    maxSize,
		logger:     logger,
		isHealthy:  true,
	}

	// 预创建一些连接
	initialSize := maxSize / 2
	if initialSize < 1 {
		initialSize = 1
	}

	for i := 0; i < initialSize; i++ {
		client, err := pool.createClient()
		if err != nil {
			logger.Warnf("预创建连接失败: %v", err)
			break
		}

		select {
		case pool.clients <- client:
			pool.current++
		default:
			client.Close()
		}
	}

	return pool, nil
}

// createClient 创建新的EVM客户端
func (np *NodePool) createClient() (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, np.nodeConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("连接节点失败: %w", err)
	}

	// 测试连接
	_, err = client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("测试连接失败: %w", err)
	}

	return client, nil
}

// GetClient 获取指定链的客户端连接
// 按节点priority依次尝试，全部失败才报错。
func (cp *ChainPool) GetClient(chain string) (*ethclient.Client, string, error) {
	cp.mu.RLock()
	nodes := cp.nodesByChain[chain]
	cp.mu.RUnlock()

	if len(nodes) == 0 {
		return nil, "", fmt.Errorf("链 %s 没有配置节点", chain)
	}

	for _, node := range nodes {
		cp.mu.RLock()
		pool, exists := cp.pools[node.Name]
		cp.mu.RUnlock()

		if !exists || !pool.IsHealthy() {
			continue
		}

		client, err := pool.GetClient()
		if err != nil {
			cp.logger.Debugf("从链 %s 节点 %s 获取连接失败: %v", chain, node.Name, err)
			continue
		}
		return client, node.Name, nil
	}

	return nil, "", fmt.Errorf("链 %s 没有可用的健康节点", chain)
}

// HasChain 检查链是否有已初始化的节点
func (cp *ChainPool) HasChain(chain string) bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	for _, node := range cp.nodesByChain[chain] {
		if _, exists := cp.pools[node.Name]; exists {
			return true
		}
	}
	return false
}

// GetClient 从节点池获取客户端
func (np *NodePool) GetClient() (*ethclient.Client, error) {
	// 首先尝试从池中获取现有连接
	select {
	case client := <-np.clients:
		// 检查连接是否仍然有效
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			np.mu.Lock()
			np.current--
			np.mu.Unlock()
			// 连接无效，尝试创建新连接
			return np.createNewClient()
		}

		return client, nil
	default:
		// 池中没有可用连接，创建新连接
		return np.createNewClient()
	}
}

// createNewClient 创建新客户端连接
func (np *NodePool) createNewClient() (*ethclient.Client, error) {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.current >= np.maxSize {
		return nil, fmt.Errorf("连接池已满")
	}

	client, err := np.createClient()
	if err != nil {
		np.isHealthy = false
		return nil, err
	}

	np.current++
	return client, nil
}

// ReturnClient 归还客户端到池中
func (cp *ChainPool) ReturnClient(client *ethclient.Client, nodeName string) {
	if client == nil {
		return
	}

	cp.mu.RLock()
	pool, exists := cp.pools[nodeName]
	cp.mu.RUnlock()

	if !exists {
		client.Close()
		return
	}

	pool.ReturnClient(client)
}

// ReturnClient 归还客户端到节点池
func (np *NodePool) ReturnClient(client *ethclient.Client) {
	if client == nil {
		return
	}

	select {
	case np.clients <- client:
		// 成功归还到池中
	default:
		// 池已满，关闭连接
		client.Close()
		np.mu.Lock()
		np.current--
		np.mu.Unlock()
	}
}

// IsHealthy 检查节点是否健康
func (np *NodePool) IsHealthy() bool {
	np.mu.Lock()
	defer np.mu.Unlock()

	// 如果最近检查过且是健康的，直接返回
	if time.Since(np.lastCheck) < 30*time.Second && np.isHealthy {
		return np.isHealthy
	}

	client, err := np.createClient()
	if err != nil {
		np.isHealthy = false
		np.lastCheck = time.Now()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.ChainID(ctx)
	client.Close()

	np.isHealthy = (err == nil)
	np.lastCheck = time.Now()

	return np.isHealthy
}

// healthChecker 健康检查器
func (cp *ChainPool) healthChecker() {
	ticker := time.NewTicker(cp.healthCheck)
	defer ticker.Stop()

	for {
		select {
		case <-cp.done:
			return
		case <-ticker.C:
		}

		cp.mu.RLock()
		pools := make(map[string]*NodePool)
		for name, pool := range cp.pools {
			pools[name] = pool
		}
		cp.mu.RUnlock()

		for name, pool := range pools {
			if pool.IsHealthy() {
				cp.logger.Debugf("节点 %s 健康检查通过", name)
			} else {
				cp.logger.Warnf("节点 %s 健康检查失败", name)
			}
		}
	}
}

// GetStats 获取连接池统计信息
func (cp *ChainPool) GetStats() map[string]interface{} {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	stats := make(map[string]interface{})

	for name, pool := range cp.pools {
		poolStats := map[string]interface{}{
			"chain":        pool.nodeConfig.Chain,
			"max_size":     pool.maxSize,
			"current_size": pool.current,
			"available":    len(pool.clients),
			"is_healthy":   pool.IsHealthy(),
			"last_check":   pool.lastCheck.Format(time.RFC3339),
		}
		stats[name] = poolStats
	}

	return stats
}

// Close 关闭连接池
func (cp *ChainPool) Close() error {
	close(cp.done)

	cp.mu.Lock()
	defer cp.mu.Unlock()

	var errs []error

	for name, pool := range cp.pools {
		if err := pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭节点 %s 连接池失败: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("关闭连接池时发生错误: %v", errs)
	}

	cp.logger.Info("连接池已关闭")
	return nil
}

// Close 关闭节点连接池
func (np *NodePool) Close() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	close(np.clients)
	for client := range np.clients {
		client.Close()
	}

	np.current = 0
	return nil
}

// Lease 连接租约，自动管理连接的获取和归还
type Lease struct {
	client   *ethclient.Client
	nodeName string
	pool     *ChainPool
}

// Acquire 获取指定链的连接租约
func (cp *ChainPool) Acquire(chain string) (*Lease, error) {
	client, nodeName, err := cp.GetClient(chain)
	if err != nil {
		return nil, err
	}

	return &Lease{
		client:   client,
		nodeName: nodeName,
		pool:     cp,
	}, nil
}

// Client 获取EVM客户端
func (l *Lease) Client() *ethclient.Client {
	return l.client
}

// NodeName 获取节点名称
func (l *Lease) NodeName() string {
	return l.nodeName
}

// Close 关闭租约，自动归还连接
func (l *Lease) Close() {
	if l.client != nil {
		l.pool.ReturnClient(l.client, l.nodeName)
		l.client = nil
	}
}
