package provider

import (
	"context"
	"fmt"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// AssetClient calls the external character/asset generation service.
type AssetClient struct {
	httpClient
}

func NewAssetClient(opts Options) *AssetClient {
	return &AssetClient{httpClient: newHTTPClient(opts)}
}

type assetRequest struct {
	CharacterID string `json:"characterId"`
	Style       string `json:"style"`
}

type assetResponse struct {
	Appearance string `json:"appearance"`
	ImageRef   string `json:"imageRef"`
	Voice      struct {
		VoiceID string  `json:"voiceId"`
		Pitch   float64 `json:"pitch"`
		Speed   float64 `json:"speed"`
	} `json:"voice"`
	Expressions []string `json:"expressions"`
	Motions     []string `json:"motions"`
}

func (c *AssetClient) GenerateCharacter(ctx context.Context, characterID string, style constant.Style) (*entities.CharacterAsset, error) {
	var resp assetResponse
	err := c.post(ctx, "/v1/characters", assetRequest{
		CharacterID: characterID,
		Style:       string(style),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Appearance == "" {
		return nil, fmt.Errorf("asset service returned empty appearance for %s", characterID)
	}

	asset := &entities.CharacterAsset{
		ID:         characterID,
		Appearance: resp.Appearance,
		ImageRef:   resp.ImageRef,
		Voice: entities.VoiceDescriptor{
			VoiceID: resp.Voice.VoiceID,
			Pitch:   resp.Voice.Pitch,
			Speed:   resp.Voice.Speed,
		},
		Motions: resp.Motions,
	}
	for _, e := range resp.Expressions {
		asset.Expressions = append(asset.Expressions, constant.Emotion(e))
	}
	return asset, nil
}
