package sqlinline

const QListProducts = `--sql 9e818785-f117-402e-bbcd-041ea9081399
select id::text, title, brand, category, description, price_won, image_url, stock, active, created_at, updated_at,
       count(*) over() as total
from products
where active
  and ($1::text = '' or category = $1::text)
  and ($2::text = '' or title ilike '%' || $2::text || '%' or brand ilike '%' || $2::text || '%')
order by created_at desc, id
limit $3::int offset $4::int;
`

const QGetProduct = `--sql 41f916dc-c86c-494d-b897-887d8d89f35f
select id::text, title, brand, category, description, price_won, image_url, stock, active, created_at, updated_at
from products
where id = $1::uuid;
`

const QGetProductsByIDs = `--sql ed6a80d5-c334-4f40-92d0-6d570a7d2132
select id::text, title, brand, category, description, price_won, image_url, stock, active, created_at, updated_at
from products
where id = any($1::uuid[]);
`
