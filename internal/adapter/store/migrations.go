package store

import (
	"encoding/json"
	"fmt"

	"helpdesk/internal/domain"
	"helpdesk/internal/logger"
	"helpdesk/internal/port"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keyStoreInfo = []byte("store_info")

func encodeInfo(info domain.StoreInfo) ([]byte, error) {
	return json.Marshal(info)
}

func decodeInfo(data []byte) (domain.StoreInfo, error) {
	var info domain.StoreInfo
	if len(data) == 0 {
		return info, fmt.Errorf("%w: no schema info", domain.ErrStoreNotFound)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("%w: unreadable schema info: %v", domain.ErrStoreNotFound, err)
	}
	return info, nil
}

// checkCompatibility decides whether a persisted store can be served with
// the given embedder. Vector dimension is checked per query in Search.
func checkCompatibility(info domain.StoreInfo, embedder port.Embedder) error {
	switch {
	case info.SchemaVersion == 0:
		return fmt.Errorf("%w: schema version missing", domain.ErrStoreNotFound)
	case info.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("%w: store created by newer version (v%d > v%d)", domain.ErrStoreNotFound, info.SchemaVersion, CurrentSchemaVersion)
	}

	if info.EmbeddingModel != "" && info.EmbeddingModel != embedder.ModelName() {
		logger.Warn("store was built with embedding model %s, querying with %s", info.EmbeddingModel, embedder.ModelName())
	}
	return nil
}
