// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	value string
	err   error
	ids   []string
}

func (f *fakeFetcher) GetSecretString(_ context.Context, id string) (string, error) {
	f.ids = append(f.ids, id)
	return f.value, f.err
}

type fakeSecretsClient struct {
	out *secretsmanager.GetSecretValueOutput
	err error
}

func (f fakeSecretsClient) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.out, f.err
}

func TestLoadCredentials_EnvOnly(t *testing.T) {
	creds, err := LoadCredentials(context.Background(), StaticCredentials{ProviderOpenAI: "sk", ProviderGrok: ""}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []ProviderID{ProviderOpenAI}, Configured(creds))
}

func TestLoadCredentials_SecretFillsGaps(t *testing.T) {
	f := &fakeFetcher{value: `{"openai": "from-secret", "deepseek": "ds-secret", "xai": "xai-secret", "other": "x"}`}
	arn := "arn:aws:secretsmanager:us-east-1:123:secret:tripcount/ai"

	creds, err := LoadCredentials(context.Background(), StaticCredentials{ProviderOpenAI: "from-env"}, arn, f)
	require.NoError(t, err)

	key, _ := creds.APIKey(ProviderOpenAI)
	assert.Equal(t, "from-env", key)
	key, _ = creds.APIKey(ProviderDeepseek)
	assert.Equal(t, "ds-secret", key)
	key, _ = creds.APIKey(ProviderGrok)
	assert.Equal(t, "xai-secret", key)
	assert.Equal(t, []string{arn}, f.ids)
}

func TestLoadCredentials_SecretErrorsKeepEnv(t *testing.T) {
	arn := "arn:aws:secretsmanager:us-east-1:123:secret:tripcount/ai"

	creds, err := LoadCredentials(context.Background(), StaticCredentials{ProviderDeepseek: "ds"}, arn, &fakeFetcher{err: errors.New("denied")})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "123:secret")
	assert.Equal(t, []ProviderID{ProviderDeepseek}, Configured(creds))

	_, err = LoadCredentials(context.Background(), nil, arn, &fakeFetcher{value: "plain-string"})
	assert.Error(t, err)
}

func TestAWSSecretFetcher(t *testing.T) {
	value := `{"openai":"sk"}`
	f := &AWSSecretFetcher{client: fakeSecretsClient{out: &secretsmanager.GetSecretValueOutput{SecretString: &value}}}
	got, err := f.GetSecretString(context.Background(), "arn:aws:secretsmanager:x")
	require.NoError(t, err)
	assert.Equal(t, value, got)

	f = &AWSSecretFetcher{client: fakeSecretsClient{out: &secretsmanager.GetSecretValueOutput{}}}
	_, err = f.GetSecretString(context.Background(), "arn:aws:secretsmanager:x")
	assert.Error(t, err)

	f = &AWSSecretFetcher{client: fakeSecretsClient{err: errors.New("throttled")}}
	_, err = f.GetSecretString(context.Background(), "arn:aws:secretsmanager:x")
	assert.Error(t, err)
}

func TestConfigured_Nil(t *testing.T) {
	assert.Empty(t, Configured(nil))
}
