package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ResourceType string

const (
	ResourceTypeAccount        ResourceType = "Accounts"
	ResourceTypeKeyset         ResourceType = "Keysets"
	ResourceTypeTouchpoint     ResourceType = "Touchpoints"
	ResourceTypeRecoveryEntity ResourceType = "Recoveries"
	ResourceTypeRelationship   ResourceType = "Relationships"
	ResourceTypeInheritance    ResourceType = "InheritanceClaims"
	ResourceTypePrivilegedOp   ResourceType = "PrivilegedOperations"
	ResourceTypeTxVerification ResourceType = "TransactionVerifications"
	ResourceTypeMobilePaySetup ResourceType = "MobilePaySetups"
	ResourceTypeNotification   ResourceType = "Notifications"
	ResourceTypeVerificationCode ResourceType = "VerificationCodes"
	ResourceTypeUser           ResourceType = "Users"
	ResourceTypeGroup          ResourceType = "Groups"
)

var ResourceKeyMap = map[ResourceType]string{
	ResourceTypeAccount:        "account_id",
	ResourceTypeKeyset:         "keyset_id",
	ResourceTypeTouchpoint:     "touchpoint_id",
	ResourceTypeRecoveryEntity: "recovery_id",
	ResourceTypeRelationship:   "relationship_id",
	ResourceTypeInheritance:    "claim_id",
	ResourceTypePrivilegedOp:   "privileged_action_id",
	ResourceTypeTxVerification: "verification_id",
	ResourceTypeMobilePaySetup: "mobile_pay_id",
	ResourceTypeNotification:   "notification_id",
	ResourceTypeVerificationCode: "code_id",
	ResourceTypeUser:           "user_id",
	ResourceTypeGroup:          "group_id",
}

func GetResourceFieldID(resourcePart string) (string, error) {
	for k, v := range ResourceKeyMap {
		if strings.EqualFold(fmt.Sprint(k), resourcePart) {
			return v, nil
		}
	}

	return "", fmt.Errorf("failed to parse ResourceIDField: Unknown resource %s", resourcePart)
}

type Resource struct {
	ID   uuid.UUID    `json:"id" bson:"_id"`
	Type ResourceType `json:"type" bson:"type"`
}
