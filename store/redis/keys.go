package redis

import "fmt"

// Key naming conventions. All keys are prefixed with "retouch:" to avoid
// collisions with other users of the same Redis.

const keyPrefix = "retouch:"

// jobKey returns the key for a job entity: retouch:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// queueKey returns the Sorted Set key for a queue: retouch:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// checkpointKey returns the key for a step checkpoint:
// retouch:checkpoint:{jobID}:{step}
func checkpointKey(jobID, stepName string) string {
	return fmt.Sprintf("%scheckpoint:%s:%s", keyPrefix, jobID, stepName)
}

// checkpointIndexKey returns the Set key tracking a job's checkpoints.
func checkpointIndexKey(jobID string) string {
	return keyPrefix + "checkpoint_idx:" + jobID
}
