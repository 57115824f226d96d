package storage

import "context"

// NewKeyStore returns the API key store of a service account. Keys are kept
// in the settings table.
func (s *Store) NewKeyStore(service, account string) *keyStore {
	return &keyStore{
		store:   s,
		service: service,
		account: account,
	}
}

type keyStore struct {
	store   *Store
	service string
	account string
}

func (k *keyStore) id() string {
	return SettingID(k.service, k.account, "key")
}

func (k *keyStore) GetKey(ctx context.Context) (string, error) {
	setting, err := k.store.GetSetting(ctx, k.id())
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (k *keyStore) SetKey(ctx context.Context, key string) error {
	return k.store.SetSetting(ctx, k.id(), key)
}
