package paramstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when the named parameter does not exist.
var ErrNotFound = errors.New("paramstore: parameter not found")

// ssmAPI is the part of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Source yields decrypted secret values by parameter name.
type Source interface {
	SecretString(ctx context.Context, name string) (string, error)
}

// Client reads SecureString parameters, always decrypted.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: nil ssm api")
	}
	return &Client{api: api}, nil
}

func (c *Client) SecretString(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: empty parameter name")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	var notFound *ssmtypes.ParameterNotFound
	switch {
	case errors.As(err, &notFound):
		return "", errors.Wrapf(ErrNotFound, "%s", name)
	case err != nil:
		return "", errors.Wrapf(err, "paramstore: read %s", name)
	}
	if out == nil || out.Parameter == nil {
		return "", errors.Errorf("paramstore: %s: missing value", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// APIKey loads the backend credential stored under name. The value is either
// the bare key or a JSON object {"token": "..."}.
func APIKey(ctx context.Context, src Source, name string) (string, error) {
	raw, err := src.SecretString(ctx, name)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		var tp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", errors.Wrapf(err, "paramstore: %s: decode token payload", name)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.Errorf("paramstore: %s holds an empty key", name)
	}
	return raw, nil
}
