package progress

// Data payloads for the frames the save and generation operations emit.

func SaveBatchData(projectID string, processed, total int) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID,
		"processed":  processed,
		"total":      total,
	}
}

func SaveCompletedData(projectID string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID,
	}
}

func SceneGeneratedData(projectID, sceneID string, sequence int) map[string]interface{} {
	return map[string]interface{}{
		"project_id":      projectID,
		"scene_id":        sceneID,
		"sequence_number": sequence,
	}
}

func GenerationCompletedData(projectID string, generated, failed int) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID,
		"generated":  generated,
		"failed":     failed,
	}
}
