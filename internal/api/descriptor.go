package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const rentalProtoFile = "agrirent/rental/v1/rental.proto"

// init registers the RentalService file descriptor so gRPC reflection can
// describe the service and its Struct messages.
func init() {
	if err := registerRentalDescriptor(protoregistry.GlobalFiles); err != nil {
		panic(err)
	}
}

func registerRentalDescriptor(files *protoregistry.Files) error {
	if _, err := files.FindFileByPath(rentalProtoFile); err == nil {
		return nil
	}

	structName := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, 3)
	for _, name := range []string{"CheckDate", "Quote", "ListEquipment"} {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structName),
			OutputType: proto.String(structName),
		})
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(rentalProtoFile),
		Package:    proto.String("agrirent.rental.v1"),
		Dependency: []string{"google/protobuf/struct.proto"},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("RentalService"),
			Method: methods,
		}},
	}

	fd, err := protodesc.NewFile(fdp, files)
	if err != nil {
		return fmt.Errorf("build rental descriptor: %w", err)
	}
	return files.RegisterFile(fd)
}
