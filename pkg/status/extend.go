package status

import "github.com/igolaizola/tunepoll/pkg/task"

// Extension records share the music schema but expose no partial states.
var extendVocabulary = vocabulary{
	kind: task.Extend,
	states: map[string]task.State{
		"PENDING":               task.Pending,
		"TEXT_SUCCESS":          task.Processing,
		"FIRST_SUCCESS":         task.Processing,
		"SUCCESS":               task.Succeeded,
		"CREATE_TASK_FAILED":    task.Failed,
		"GENERATE_AUDIO_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":    task.Failed,
		"SENSITIVE_WORD_ERROR":  task.Failed,
	},
}

func mapExtend(taskID string, raw []byte) Outcome {
	return mapTracks(extendVocabulary, taskID, raw)
}
