package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Resource name collection prefixes.
const (
	environmentNamePrefix = "environments"
	instanceNamePrefix    = "instances"
	databaseNamePrefix    = "databases"
	backupNamePrefix      = "backups"
	projectNamePrefix     = "projects"
	sheetNamePrefix       = "sheets"
	planNamePrefix        = "plans"
	rolloutNamePrefix     = "rollouts"
	stageNamePrefix       = "stages"
	taskNamePrefix        = "tasks"
)

// nameTokens splits a resource name against an expected sequence of
// collection prefixes and returns the id segments.
func nameTokens(name string, prefixes ...string) ([]string, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2*len(prefixes) {
		return nil, invalidf("invalid resource name %q", name)
	}
	tokens := make([]string, 0, len(prefixes))
	for i, prefix := range prefixes {
		if parts[2*i] != prefix {
			return nil, invalidf("invalid resource name %q: expected collection %q, got %q", name, prefix, parts[2*i])
		}
		if parts[2*i+1] == "" {
			return nil, invalidf("invalid resource name %q: empty %s id", name, prefix)
		}
		tokens = append(tokens, parts[2*i+1])
	}
	return tokens, nil
}

func ParseEnvironmentName(name string) (string, error) {
	tokens, err := nameTokens(name, environmentNamePrefix)
	if err != nil {
		return "", err
	}
	return tokens[0], nil
}

func ParseInstanceName(name string) (string, error) {
	tokens, err := nameTokens(name, instanceNamePrefix)
	if err != nil {
		return "", err
	}
	return tokens[0], nil
}

func ParseDatabaseName(name string) (instanceID, databaseName string, err error) {
	tokens, err := nameTokens(name, instanceNamePrefix, databaseNamePrefix)
	if err != nil {
		return "", "", err
	}
	return tokens[0], tokens[1], nil
}

func ParseBackupName(name string) (instanceID, databaseName, backupName string, err error) {
	tokens, err := nameTokens(name, instanceNamePrefix, databaseNamePrefix, backupNamePrefix)
	if err != nil {
		return "", "", "", err
	}
	return tokens[0], tokens[1], tokens[2], nil
}

func ParseSheetName(name string) (projectID string, sheetUID int64, err error) {
	tokens, err := nameTokens(name, projectNamePrefix, sheetNamePrefix)
	if err != nil {
		return "", 0, err
	}
	uid, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return "", 0, invalidf("invalid sheet uid %q", tokens[1])
	}
	return tokens[0], uid, nil
}

func ParsePlanName(name string) (projectID string, planUID int64, err error) {
	tokens, err := nameTokens(name, projectNamePrefix, planNamePrefix)
	if err != nil {
		return "", 0, err
	}
	uid, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return "", 0, invalidf("invalid plan uid %q", tokens[1])
	}
	return tokens[0], uid, nil
}

func ParseTaskName(name string) (projectID string, rolloutUID, stageUID, taskUID int64, err error) {
	tokens, err := nameTokens(name, projectNamePrefix, rolloutNamePrefix, stageNamePrefix, taskNamePrefix)
	if err != nil {
		return "", 0, 0, 0, err
	}
	uids := make([]int64, 3)
	for i, tok := range tokens[1:] {
		uids[i], err = strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return "", 0, 0, 0, invalidf("invalid uid %q in %q", tok, name)
		}
	}
	return tokens[0], uids[0], uids[1], uids[2], nil
}

func FormatEnvironmentName(id string) string {
	return environmentNamePrefix + "/" + id
}

func FormatInstanceName(id string) string {
	return instanceNamePrefix + "/" + id
}

func FormatDatabaseName(instanceID, databaseName string) string {
	return fmt.Sprintf("%s/%s/%s/%s", instanceNamePrefix, instanceID, databaseNamePrefix, databaseName)
}

func FormatBackupName(instanceID, databaseName, backupName string) string {
	return fmt.Sprintf("%s/%s/%s", FormatDatabaseName(instanceID, databaseName), backupNamePrefix, backupName)
}

func FormatProjectName(id string) string {
	return projectNamePrefix + "/" + id
}

func FormatSheetName(projectID string, uid int64) string {
	return fmt.Sprintf("%s/%s/%d", FormatProjectName(projectID), sheetNamePrefix, uid)
}

func FormatPlanName(projectID string, uid int64) string {
	return fmt.Sprintf("%s/%s/%d", FormatProjectName(projectID), planNamePrefix, uid)
}

func FormatRolloutName(projectID string, uid int64) string {
	return fmt.Sprintf("%s/%s/%d", FormatProjectName(projectID), rolloutNamePrefix, uid)
}

func FormatStageName(projectID string, rolloutUID, stageUID int64) string {
	return fmt.Sprintf("%s/%s/%d", FormatRolloutName(projectID, rolloutUID), stageNamePrefix, stageUID)
}

func FormatTaskName(projectID string, rolloutUID, stageUID, taskUID int64) string {
	return fmt.Sprintf("%s/%s/%d", FormatStageName(projectID, rolloutUID, stageUID), taskNamePrefix, taskUID)
}
