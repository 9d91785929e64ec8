package transport

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func grpcInvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// structToMap round-trips v through JSON into a map[string]interface{} so it
// can be fed to structpb.NewStruct, which only accepts that shape.
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
