package job

import (
	"context"
	"log"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/metrics"
	"paybridge/internal/model"
	"paybridge/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递能力，生产环境由 mq.Producer 实现
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 把到账通知从本地消息表投递到 Kafka
// 入账已经提交，投递失败只会重试，不影响余额
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   500 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 到账通知投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPendingMessages 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxSent.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// 消息已发出但状态未更新，下次会重复投递，消费端按 notice_no 去重
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		}
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, key=%s, err=%v", msg.ID, msg.MessageKey, err)

	giveUp, recErr := s.outboxRepo.RecordFailure(ctx, msg, s.cfg.Business.MaxRetryCount)
	if recErr != nil {
		log.Printf("[OutboxSender] 记录失败次数失败: id=%d, err=%v", msg.ID, recErr)
		return false
	}
	if giveUp {
		metrics.OutboxSent.WithLabelValues("failed").Inc()
		log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d, key=%s", msg.ID, msg.MessageKey)
	} else {
		metrics.OutboxSent.WithLabelValues("retry").Inc()
	}
	return false
}
