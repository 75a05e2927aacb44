// Package ses sends login code emails through Amazon SES.
package ses

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	ma "github.com/tanur/mailauth"
)

// Client is the subset of the SES v2 API the notifier uses. *sesv2.Client
// satisfies it.
type Client interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

const DefaultSubject = "Your Login Code"

// Notifier sends the login code email via SES. Sender is the verified
// source address, BaseURL is the application URL used to build the magic
// link embedded in the message.
type Notifier struct {
	Client  Client
	Sender  string
	BaseURL string
	Subject string
}

// New constructs a Notifier with an SES client loaded from the default
// AWS config chain for the given region.
func New(ctx context.Context, region, sender, baseURL string) (*Notifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Notifier{
		Client:  sesv2.NewFromConfig(cfg),
		Sender:  sender,
		BaseURL: baseURL,
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, email string, code string) error {
	subject := n.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	bodyHTML := fmt.Sprintf(`<html>
    <body>
        <center>
            <h1>Your Login Code</h1>
            <p>Please use this code to log in:</p>
            <p>%s</p>
            <p>Alternatively, you can click this link to log in:
                <a href='%s'>Log In</a>
            </p>
        </center>
    </body>
</html>`, code, ma.LoginURL(n.BaseURL, code))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := n.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.Sender),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(subject),
				},
				Body: &types.Body{
					Html: &types.Content{
						Charset: aws.String("UTF-8"),
						Data:    aws.String(bodyHTML),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending login email: %w", err)
	}
	log.Printf("Email sent! Message ID: %s", aws.ToString(out.MessageId))
	return nil
}
