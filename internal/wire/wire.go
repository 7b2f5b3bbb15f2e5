// Package wire maps identity service messages to and from google.protobuf.Struct,
// the body type of every dolist.identity.v1 RPC.
package wire

import (
	"fmt"
	"time"

	"github.com/and161185/dolist/internal/model"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldDisplayName = "display_name"
	FieldProvider    = "provider"
	FieldIDToken     = "id_token"
	FieldToken       = "token"
	FieldExpiresAt   = "expires_at"
	FieldUID         = "uid"
)

// SignUp is the SignUp request body.
type SignUp struct {
	Email       string
	Password    string
	DisplayName string
}

// SignIn is the SignIn request body.
type SignIn struct {
	Email    string
	Password string
}

// Credential is the SignInWithCredential request body.
type Credential struct {
	Provider string
	IDToken  string
}

func build(kv ...string) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		s.Fields[kv[i]] = structpb.NewStringValue(kv[i+1])
	}
	return s
}

// str returns a string field; a missing field reads as "".
func str(s *structpb.Struct, key string) (string, error) {
	if s == nil {
		return "", nil
	}
	v, ok := s.GetFields()[key]
	if !ok || v == nil {
		return "", nil
	}
	if _, isStr := v.GetKind().(*structpb.Value_StringValue); !isStr {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
			return "", nil
		}
		return "", fmt.Errorf("field %q: want string", key)
	}
	return v.GetStringValue(), nil
}

func strs(s *structpb.Struct, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v, err := str(s, k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Struct encodes the request.
func (m SignUp) Struct() *structpb.Struct {
	return build(FieldEmail, m.Email, FieldPassword, m.Password, FieldDisplayName, m.DisplayName)
}

// DecodeSignUp decodes a SignUp request body.
func DecodeSignUp(s *structpb.Struct) (SignUp, error) {
	v, err := strs(s, FieldEmail, FieldPassword, FieldDisplayName)
	if err != nil {
		return SignUp{}, err
	}
	return SignUp{Email: v[0], Password: v[1], DisplayName: v[2]}, nil
}

// Struct encodes the request.
func (m SignIn) Struct() *structpb.Struct {
	return build(FieldEmail, m.Email, FieldPassword, m.Password)
}

// DecodeSignIn decodes a SignIn request body.
func DecodeSignIn(s *structpb.Struct) (SignIn, error) {
	v, err := strs(s, FieldEmail, FieldPassword)
	if err != nil {
		return SignIn{}, err
	}
	return SignIn{Email: v[0], Password: v[1]}, nil
}

// Struct encodes the request.
func (m Credential) Struct() *structpb.Struct {
	return build(FieldProvider, m.Provider, FieldIDToken, m.IDToken)
}

// DecodeCredential decodes a SignInWithCredential request body.
func DecodeCredential(s *structpb.Struct) (Credential, error) {
	v, err := strs(s, FieldProvider, FieldIDToken)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Provider: v[0], IDToken: v[1]}, nil
}

// FromIdentity encodes an identity.
func FromIdentity(id model.Identity) *structpb.Struct {
	return build(FieldUID, id.UID, FieldDisplayName, id.DisplayName, FieldEmail, id.Email)
}

// ToIdentity decodes an identity; uid is required.
func ToIdentity(s *structpb.Struct) (model.Identity, error) {
	v, err := strs(s, FieldUID, FieldDisplayName, FieldEmail)
	if err != nil {
		return model.Identity{}, err
	}
	if v[0] == "" {
		return model.Identity{}, fmt.Errorf("field %q: required", FieldUID)
	}
	return model.Identity{UID: v[0], DisplayName: v[1], Email: v[2]}, nil
}

// FromAuthResult encodes a sign-in result.
func FromAuthResult(r model.AuthResult) *structpb.Struct {
	s := FromIdentity(r.Identity)
	s.Fields[FieldToken] = structpb.NewStringValue(r.Token)
	s.Fields[FieldExpiresAt] = structpb.NewStringValue(r.ExpiresAt.UTC().Format(time.RFC3339))
	return s
}

// ToAuthResult decodes a sign-in result; token and uid are required.
func ToAuthResult(s *structpb.Struct) (model.AuthResult, error) {
	id, err := ToIdentity(s)
	if err != nil {
		return model.AuthResult{}, err
	}
	v, err := strs(s, FieldToken, FieldExpiresAt)
	if err != nil {
		return model.AuthResult{}, err
	}
	if v[0] == "" {
		return model.AuthResult{}, fmt.Errorf("field %q: required", FieldToken)
	}
	var exp time.Time
	if v[1] != "" {
		if exp, err = time.Parse(time.RFC3339, v[1]); err != nil {
			return model.AuthResult{}, fmt.Errorf("field %q: %w", FieldExpiresAt, err)
		}
	}
	return model.AuthResult{Token: v[0], ExpiresAt: exp, Identity: id}, nil
}

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dolist.identity.v1.Identity"

// Full method names.
const (
	MethodSignUp               = "/" + ServiceName + "/SignUp"
	MethodSignIn               = "/" + ServiceName + "/SignIn"
	MethodSignInWithCredential = "/" + ServiceName + "/SignInWithCredential"
	MethodWhoAmI               = "/" + ServiceName + "/WhoAmI"
)
