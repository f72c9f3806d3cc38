// internal/transport/ses.go
package transport

import (
	"context"
	"database/sql"
	"fmt"

	"broadcast-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES client the transport needs; defined
// here so tests can mock it.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailTransport delivers a message to one recipient over SES. The SDK
// applies its own retry/backoff; a returned error means Undelivered for
// this dispatch run.
type EmailTransport struct {
	client SESService
	db     *sql.DB
	from   string
}

func NewEmailTransport(ctx context.Context, db *sql.DB, region, fromEmail string) (*EmailTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &EmailTransport{
		client: ses.NewFromConfig(awsCfg),
		db:     db,
		from:   fromEmail,
	}, nil
}

// NewEmailTransportWithClient injects a prebuilt client, used by tests.
func NewEmailTransportWithClient(client SESService, db *sql.DB, fromEmail string) *EmailTransport {
	return &EmailTransport{client: client, db: db, from: fromEmail}
}

func (t *EmailTransport) Attempt(ctx context.Context, recipientID string, msg *models.Message) error {
	var email string
	err := t.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, recipientID).Scan(&email)
	if err != nil {
		return fmt.Errorf("recipient lookup: %w", err)
	}

	_, err = t.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Content)},
			},
		},
		Source: aws.String(t.from),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
