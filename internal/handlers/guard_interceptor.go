package handlers

import (
	"context"
	"errors"

	"github.com/asakaida/kanmon/internal/identity"
	"github.com/asakaida/kanmon/internal/services/authorization"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Health check methods are never guarded
var PublicMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/List",
}

// DefaultGuardRequirements returns the guard table entries for the kanmon.v1
// services. Every administrative method additionally requires the caller to
// hold the admin role.
func DefaultGuardRequirements(adminAuthority, anonymousAuthority string) map[string]authorization.Requirement {
	admin := func(operation string) authorization.Requirement {
		return authorization.Requirement{Operation: operation, Authority: adminAuthority, RequireRole: true}
	}
	anonymous := func(operation string) authorization.Requirement {
		return authorization.Requirement{Operation: operation, Authority: anonymousAuthority}
	}

	return map[string]authorization.Requirement{
		MethodCheckPermission:    anonymous("checkPermission"),
		MethodRegisterPermission: admin("registerPermission"),
		MethodRevokePermission:   admin("revokePermission"),

		MethodCreateFunctionality: admin("createFunctionality"),
		MethodUpdateFunctionality: admin("updateFunctionality"),
		MethodGetFunctionality:    anonymous("getFunctionality"),
		MethodListFunctionalities: anonymous("getAllFunctionalities"),
		MethodDeleteFunctionality: admin("deleteFunctionality"),

		MethodListAuthorities: admin("getAuthorities"),
		MethodCreateAuthority: admin("createAuthority"),
		MethodDeleteAuthority: admin("deleteAuthority"),
	}
}

// GuardInterceptor returns a unary interceptor that runs the guard table
// before every handler. Rejected calls never reach the handler.
func GuardInterceptor(table *authorization.GuardTable, gate authorization.GateInterface, provider identity.Provider, logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		caller := provider.Principal(ctx)

		if err := table.Authorize(ctx, gate, info.FullMethod, caller); err != nil {
			entry := logger.WithFields(logrus.Fields{
				"method":  info.FullMethod,
				"subject": caller.Subject,
			})
			if errors.Is(err, authorization.ErrForbidden) {
				entry.Info("call rejected")
			} else {
				entry.WithError(err).Error("authorization check failed")
			}
			return nil, toStatus(err)
		}

		return handler(identity.ContextWithPrincipal(ctx, caller), req)
	}
}
