// 文件: pkg/series/runid.go
// 构建批次 ID (雪花算法)
// 使用开源库: github.com/bwmarrin/snowflake
//
// 日志、Kafka 消息头、NATS 事件都带上 run_id，方便把一次构建的输出串起来

package series

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
	initErr  error
)

// InitRunIDNode 初始化节点
// nodeID: 0-1023，多实例部署 watch 时各自不同
func InitRunIDNode(nodeID int64) error {
	initOnce.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// NewRunID 生成批次 ID；未初始化时使用节点 0
func NewRunID() int64 {
	if err := InitRunIDNode(0); err != nil || node == nil {
		return 0
	}
	return node.Generate().Int64()
}
