// internal/transport/sns.go
package transport

import (
	"context"
	"database/sql"
	"fmt"

	"broadcast-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the slice of the SNS client the transport needs; defined
// here so tests can mock it.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSTransport delivers a message to one recipient as an SMS via SNS.
type SMSTransport struct {
	client   SNSService
	db       *sql.DB
	senderID string
}

func NewSMSTransport(ctx context.Context, db *sql.DB, region, senderID string) (*SMSTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SMSTransport{
		client:   sns.NewFromConfig(awsCfg),
		db:       db,
		senderID: senderID,
	}, nil
}

// NewSMSTransportWithClient injects a prebuilt client, used by tests.
func NewSMSTransportWithClient(client SNSService, db *sql.DB, senderID string) *SMSTransport {
	return &SMSTransport{client: client, db: db, senderID: senderID}
}

func (t *SMSTransport) Attempt(ctx context.Context, recipientID string, msg *models.Message) error {
	var phone string
	err := t.db.QueryRowContext(ctx, `SELECT phone FROM users WHERE id = $1`, recipientID).Scan(&phone)
	if err != nil {
		return fmt.Errorf("recipient lookup: %w", err)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg.Title + "\n" + msg.Content),
	}
	if t.senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(t.senderID),
			},
		}
	}

	if _, err := t.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
