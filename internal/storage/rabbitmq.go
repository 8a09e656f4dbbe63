package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"resume-screening-go/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageQueue 消息队列接口
type MessageQueue interface {
	// PublishMessage 发布消息
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error

	// PublishJSON 发布JSON格式消息
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error

	// EnsureExchange 确保交换机存在
	EnsureExchange(exchangeName, exchangeType string, durable bool) error

	// EnsureQueue 确保队列存在，args可携带x-dead-letter-exchange等扩展参数
	EnsureQueue(queueName string, durable bool, args amqp.Table) error

	// BindQueue 绑定队列到交换机
	BindQueue(queueName, exchangeName, routingKey string) error

	// Close 关闭连接
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// 死信拓扑命名约定：死信交换机与死信队列都由主队列名派生
const (
	deadLetterExchangeSuffix = ".dlx"
	deadLetterQueueSuffix    = ".dead"
)

// RabbitMQ 提供消息队列功能。
// 拓扑声明做本地去重，同一进程内重复Ensure调用只会向broker声明一次。
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	declaredMu   sync.Mutex
	declared     map[string]struct{} // 已声明的对象，key形如 "ex:<name>" / "q:<name>" / "b:<ex>:<q>:<rk>"
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器 (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]struct{}),
		cfg:      cfg,
	}

	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, errPool := conn.Channel()
			if errPool != nil {
				log.Printf("创建RabbitMQ通道失败: %v", errPool)
				return nil
			}
			return ch
		},
	}

	// 拿一个通道验证连接可用
	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(testCh)

	log.Printf("成功连接到RabbitMQ服务器: %s", cfg.URL)
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			log.Printf("创建新RabbitMQ通道失败: %v", err)
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// markDeclared 记录对象已声明，返回是否为首次声明
func (r *RabbitMQ) markDeclared(key string) bool {
	r.declaredMu.Lock()
	defer r.declaredMu.Unlock()
	if _, ok := r.declared[key]; ok {
		return false
	}
	r.declared[key] = struct{}{}
	return true
}

// unmarkDeclared 声明失败时回滚本地记录
func (r *RabbitMQ) unmarkDeclared(key string) {
	r.declaredMu.Lock()
	defer r.declaredMu.Unlock()
	delete(r.declared, key)
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// SetupResumeEventsTopology 声明简历事件的完整拓扑：
// 主topic交换机、原始简历队列及其死信交换机/死信队列。
// 消费端拒绝且不重新入队的消息会落入死信队列，便于人工排查。
func (r *RabbitMQ) SetupResumeEventsTopology() error {
	if err := r.EnsureExchange(r.cfg.ResumeEventsExchange, "topic", true); err != nil {
		return err
	}

	// 死信拓扑
	dlxName := r.cfg.RawResumeQueue + deadLetterExchangeSuffix
	deadQueue := r.cfg.RawResumeQueue + deadLetterQueueSuffix
	if err := r.EnsureExchange(dlxName, "fanout", true); err != nil {
		return err
	}
	if err := r.EnsureQueue(deadQueue, true, nil); err != nil {
		return err
	}
	if err := r.BindQueue(deadQueue, dlxName, ""); err != nil {
		return err
	}

	// 主队列挂载死信交换机
	queueArgs := amqp.Table{"x-dead-letter-exchange": dlxName}
	if err := r.EnsureQueue(r.cfg.RawResumeQueue, true, queueArgs); err != nil {
		return err
	}
	return r.BindQueue(r.cfg.RawResumeQueue, r.cfg.ResumeEventsExchange, r.cfg.UploadedRoutingKey)
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	// 默认交换机不可声明
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("不能声明默认交换机 '%s'", exchangeName)
	}

	key := "ex:" + exchangeName
	if !r.markDeclared(key) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		durable,
		false, // 自动删除
		false, // 内部专用
		false, // 非阻塞
		nil,
	)
	if err != nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("声明exchange '%s' 失败: %w", exchangeName, err)
	}

	log.Printf("已确保exchange存在: '%s' (%s)", exchangeName, exchangeType)
	return nil
}

// EnsureQueue 确保队列存在
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool, args amqp.Table) error {
	if queueName == "" {
		return fmt.Errorf("队列名称不能为空")
	}

	key := "q:" + queueName
	if !r.markDeclared(key) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	_, err := ch.QueueDeclare(
		queueName,
		durable,
		false, // 自动删除
		false, // 独占
		false, // 非阻塞
		args,
	)
	if err != nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("声明队列 '%s' 失败: %w", queueName, err)
	}

	log.Printf("已确保队列存在: %s", queueName)
	return nil
}

// BindQueue 绑定队列到exchange
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	key := fmt.Sprintf("b:%s:%s:%s", exchangeName, queueName, routingKey)
	if !r.markDeclared(key) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		r.unmarkDeclared(key)
		return fmt.Errorf("绑定队列 '%s' 到exchange '%s' 失败: %w", queueName, exchangeName, err)
	}

	log.Printf("已绑定队列 %s 到exchange %s，路由键: %q", queueName, exchangeName, routingKey)
	return nil
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	return ch.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // 强制
		false, // 立即
		amqp.Publishing{
			DeliveryMode: deliveryMode,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}

	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// StartConsumer 启动消费者。handler返回true则Ack，否则Nack并重新入队。
// 返回的channel用于停止消费：close后消费循环退出。
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error) {
	stopCh := make(chan struct{})

	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"",    // 消费者标签由server生成
		false, // 自动确认
		false, // 独占
		false, // 非本地
		false, // 非阻塞
		nil,
	)
	if err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	go r.consumeLoop(queueName, prefetchCount, ch, deliveries, stopCh, handler)

	return stopCh, nil
}

func (r *RabbitMQ) consumeLoop(queueName string, prefetchCount int, ch *amqp.Channel, deliveries <-chan amqp.Delivery, stopCh <-chan struct{}, handler func([]byte) bool) {
	defer r.putChannel(ch)
	defer log.Printf("RabbitMQ消费者已停止: %s", queueName)

	log.Printf("RabbitMQ消费者已启动，队列: %s, 预取数量: %d", queueName, prefetchCount)

	for {
		select {
		case <-stopCh:
			return
		case delivery, ok := <-deliveries:
			if !ok {
				log.Printf("RabbitMQ通道已关闭: %s", queueName)
				return
			}

			if handler(delivery.Body) {
				if err := delivery.Ack(false); err != nil {
					log.Printf("确认消息失败: %v", err)
				}
				continue
			}

			// 处理失败，拒绝并重新入队等待下次消费
			if err := delivery.Nack(false, true); err != nil {
				log.Printf("拒绝消息失败: %v", err)
			}
		}
	}
}
