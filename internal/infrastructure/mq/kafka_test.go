package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestProducer_SendMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"payment_id":"pay_1"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewProducer(sp)
	defer p.Close()

	if err := p.SendMessage("topup_notice", "pay_1", `{"payment_id":"pay_1"}`); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestProducer_SendMessageError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducer(sp)
	defer p.Close()

	if err := p.SendMessage("topup_notice", "pay_1", "{}"); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v, want ErrOutOfBrokers", err)
	}
}
