package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// 雪花 ID：41 位毫秒时间戳 + 10 位节点 + 12 位序列，趋势递增，适合做订单号索引。
// 多实例部署时每个实例的 node_id 必须不同。

var (
	node *snowflake.Node
	once sync.Once
)

// Init 初始化节点，nodeID 取值 0-1023
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("初始化 ID 生成器失败: %w", err)
	}
	node = n
	return nil
}

func current() *snowflake.Node {
	once.Do(func() {
		if node == nil {
			node, _ = snowflake.NewNode(0)
		}
	})
	return node
}

// GenerateOrderNo ORD + 雪花 ID
func GenerateOrderNo() string {
	return "ORD" + current().Generate().String()
}
