package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"catalog-sync-worker/domain"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateItemOutput), args.Error(1)
}

func TestNewDynamoDBClient(t *testing.T) {
	client := NewDynamoDBClient(nil, "test-table")
	assert.NotNil(t, client)
	assert.Equal(t, "test-table", client.tableName)
}

func TestUpdateRunStatus_NoTable(t *testing.T) {
	client := NewDynamoDBClient(nil, "")
	err := client.UpdateRunStatus(context.Background(), domain.RunStats{RunID: "run-1"}, domain.StatusRunning)
	assert.NoError(t, err)
}

func TestUpdateRunStatus_Success(t *testing.T) {
	mockDB := new(MockDynamoDB)
	client := NewDynamoDBClient(mockDB, "test-table")
	stats := domain.RunStats{
		RunID:          "run-1",
		Catalog:        "homegate-rent",
		PagesSucceeded: 4,
		NewRecords:     2,
		StopReason:     domain.StopAllDuplicates,
	}

	mockDB.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
		key, ok := input.Key["run_id"].(*types.AttributeValueMemberS)
		pages, _ := input.ExpressionAttributeValues[":pages"].(*types.AttributeValueMemberN)
		reason, _ := input.ExpressionAttributeValues[":reason"].(*types.AttributeValueMemberS)
		return *input.TableName == "test-table" && ok && key.Value == "run-1" &&
			input.ExpressionAttributeNames["#s"] == "status" &&
			input.ExpressionAttributeNames["#c"] == "catalog" &&
			!bareReservedWord(*input.UpdateExpression) &&
			pages != nil && pages.Value == "4" &&
			reason != nil && reason.Value == "all_duplicates"
	}), mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := client.UpdateRunStatus(context.Background(), stats, domain.StatusCompleted)
	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestUpdateRunStatus_Error(t *testing.T) {
	mockDB := new(MockDynamoDB)
	client := NewDynamoDBClient(mockDB, "test-table")

	mockDB.On("UpdateItem", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dynamo error"))

	err := client.UpdateRunStatus(context.Background(), domain.RunStats{RunID: "run-1"}, domain.StatusFailed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update run status")
}

// bareReservedWord reports whether a DynamoDB reserved word is used as an
// unaliased attribute name in an update expression.
func bareReservedWord(expr string) bool {
	reserved := map[string]bool{"STATUS": true, "CATALOG": true, "NAME": true, "TIMESTAMP": true, "DATE": true}
	for _, tok := range strings.FieldsFunc(expr, func(r rune) bool {
		return r == ' ' || r == ',' || r == '='
	}) {
		if reserved[strings.ToUpper(tok)] {
			return true
		}
	}
	return false
}
