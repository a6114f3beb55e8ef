package repositories

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"catalog-sync-worker/domain"
)

type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBClient records the status and counters of every catalog run.
type DynamoDBClient struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

func NewDynamoDBClient(client DynamoDBAPI, tableName string) *DynamoDBClient {
	return &DynamoDBClient{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (d *DynamoDBClient) UpdateRunStatus(ctx context.Context, stats domain.RunStats, status string) error {
	if d.tableName == "" {
		log.Printf("Warning: DYNAMODB_TABLE not configured, skipping DynamoDB status update for run %s", stats.RunID)
		return nil
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"run_id": &types.AttributeValueMemberS{Value: stats.RunID},
		},
		UpdateExpression: aws.String("SET #s = :status, #c = :catalog, pages = :pages, new_records = :new, " +
			"refreshed_records = :refreshed, delisted_records = :delisted, stop_reason = :reason, updated_at = :uat"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
			"#c": "catalog",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: status},
			":catalog":   &types.AttributeValueMemberS{Value: stats.Catalog},
			":pages":     &types.AttributeValueMemberN{Value: strconv.Itoa(stats.PagesSucceeded)},
			":new":       &types.AttributeValueMemberN{Value: strconv.Itoa(stats.NewRecords)},
			":refreshed": &types.AttributeValueMemberN{Value: strconv.Itoa(stats.RefreshedRecords)},
			":delisted":  &types.AttributeValueMemberN{Value: strconv.Itoa(stats.DelistedRecords)},
			":reason":    &types.AttributeValueMemberS{Value: string(stats.StopReason)},
			":uat":       &types.AttributeValueMemberS{Value: d.now().UTC().Format(time.RFC3339)},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to update run status in DynamoDB for run %s: %w", stats.RunID, err)
	}

	log.Printf("Updated run %s (%s) status to %s in DynamoDB (Table: %s)", stats.RunID, stats.Catalog, status, d.tableName)
	return nil
}
