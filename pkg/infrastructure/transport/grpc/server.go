package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

// Server hosts the outreach service and the standard health service on one grpc.Server.
type Server struct {
	*gogrpc.Server
	health *health.Server
}

func NewServer(
	notifications service.NotificationService,
	dispatch service.DispatchService,
	recipients service.RecipientService,
	logger logrus.FieldLogger,
) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := gogrpc.NewServer(gogrpc.ChainUnaryInterceptor(logInterceptor(logger)))
	RegisterOutreachServer(s, &outreachServer{notifications: notifications, dispatch: dispatch, recipients: recipients})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{Server: s, health: hs}
}

// Shutdown reports NOT_SERVING to health checks and then drains in-flight calls.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}

func logInterceptor(logger logrus.FieldLogger) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil && status.Code(err) == codes.Internal {
			entry.WithError(err).Error("rpc failed")
		} else {
			entry.Info("got a new rpc")
		}
		return resp, err
	}
}

type outreachServer struct {
	notifications service.NotificationService
	dispatch      service.DispatchService
	recipients    service.RecipientService
}

func (s *outreachServer) SendNotification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	eventID, err := uuidField(in, "eventId")
	if err != nil {
		return nil, err
	}
	recipientID, err := uuidField(in, "recipientId")
	if err != nil {
		return nil, err
	}
	channel, err := model.ParseChannel(stringField(in, "channel"))
	if err != nil {
		return nil, toStatus(err)
	}

	n, err := s.notifications.Send(ctx, service.SendRequest{
		EventID: eventID, RecipientID: recipientID, Channel: channel, Message: optionalString(in, "message"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(notificationFields(n))
}

func (s *outreachServer) DispatchBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	eventID, err := uuidField(in, "eventId")
	if err != nil {
		return nil, err
	}
	channel, err := model.ParseChannel(stringField(in, "channel"))
	if err != nil {
		return nil, toStatus(err)
	}
	var ids []uuid.UUID
	for _, v := range in.GetFields()["recipientIds"].GetListValue().GetValues() {
		id, err := uuid.Parse(v.GetStringValue())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid recipient id %q", v.GetStringValue())
		}
		ids = append(ids, id)
	}

	result, err := s.dispatch.Dispatch(ctx, service.DispatchRequest{
		EventID:      eventID,
		Channel:      channel,
		Message:      optionalString(in, "message"),
		RecipientIDs: ids,
		InitiatedBy:  stringField(in, "initiatedBy"),
	})
	finalizeErr := errors.Is(err, model.ErrBatchFinalization) && result != nil
	if err != nil && !finalizeErr {
		return nil, toStatus(err)
	}

	errs := make([]interface{}, 0, len(result.Outcomes))
	for _, o := range result.Errors() {
		errs = append(errs, map[string]interface{}{
			"recipientId": o.RecipientID.String(),
			"outcome":     string(o.Outcome),
			"reason":      o.Reason,
		})
	}
	fields := map[string]interface{}{
		"batch":      batchFields(result.Batch),
		"successful": result.Successful,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
		"errors":     errs,
	}
	// The messages are out; report the failed bookkeeping in the reply so the caller
	// does not retry the whole batch.
	if finalizeErr {
		fields["error"] = model.ErrBatchFinalization.Error()
	}
	return structpb.NewStruct(fields)
}

func (s *outreachServer) GetBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	batchID, err := uuidField(in, "batchId")
	if err != nil {
		return nil, err
	}
	batch, err := s.dispatch.GetBatch(ctx, batchID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(batchFields(batch))
}

func (s *outreachServer) ConfirmAttendance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	recipientID, err := uuidField(in, "recipientId")
	if err != nil {
		return nil, err
	}
	r, err := s.recipients.Confirm(ctx, service.ConfirmRequest{
		RecipientID: recipientID,
		PartySize:   int(in.GetFields()["partySize"].GetNumberValue()),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"id":        r.ID.String(),
		"eventId":   r.EventID.String(),
		"fullName":  r.FullName(),
		"status":    string(r.Status),
		"partySize": r.PartySize,
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrRecipientNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrBatchNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrRecipientMismatch),
		errors.Is(err, model.ErrUnsupportedChannel),
		errors.Is(err, model.ErrInvalidPartySize):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNoContactAddress),
		errors.Is(err, model.ErrNoRecipients),
		errors.Is(err, model.ErrEmptyTargetSet),
		errors.Is(err, model.ErrAlreadyConfirmed),
		errors.Is(err, model.ErrAlreadyDeclined):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrLimitExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func optionalString(s *structpb.Struct, key string) *string {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	str := v.GetStringValue()
	return &str
}

func uuidField(s *structpb.Struct, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(s, key))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	return id, nil
}

func notificationFields(n *model.Notification) map[string]interface{} {
	m := map[string]interface{}{
		"id":                n.ID.String(),
		"eventId":           n.EventID.String(),
		"recipientId":       n.RecipientID.String(),
		"channel":           n.Channel.String(),
		"status":            string(n.Status),
		"body":              n.Body,
		"providerMessageId": n.ProviderMessageID,
		"error":             n.Error,
	}
	if n.SentAt != nil {
		m["sentAt"] = n.SentAt.UTC().Format(time.RFC3339)
	}
	return m
}

func batchFields(b *model.NotificationBatch) map[string]interface{} {
	metadata := make(map[string]interface{}, len(b.Metadata))
	for k, v := range b.Metadata {
		metadata[k] = v
	}
	return map[string]interface{}{
		"id":              b.ID.String(),
		"eventId":         b.EventID.String(),
		"channel":         b.Channel.String(),
		"status":          string(b.Status),
		"totalRecipients": b.TotalRecipients,
		"successfulCount": b.SuccessfulCount,
		"failedCount":     b.FailedCount,
		"skippedCount":    b.SkippedCount,
		"initiatedBy":     b.InitiatedBy,
		"metadata":        metadata,
		"createdAt":       b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
