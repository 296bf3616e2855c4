// Package cloud builds AWS sessions shared by every component talking to AWS.
package cloud

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
)

// NewSession loads shared config and the default credential chain for region.
func NewSession(region string) (*session.Session, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
		Config:            aws.Config{Region: aws.String(region)},
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sess, nil
}

// AssumeRole returns a copy of sess whose credentials come from assuming roleARN.
// An empty roleARN returns sess unchanged.
func AssumeRole(sess *session.Session, roleARN, sessionName string) *session.Session {
	if roleARN == "" {
		return sess
	}
	creds := stscreds.NewCredentials(sess, roleARN, func(p *stscreds.AssumeRoleProvider) {
		if sessionName != "" {
			p.RoleSessionName = sessionName
		}
	})
	return sess.Copy(&aws.Config{Credentials: creds})
}
